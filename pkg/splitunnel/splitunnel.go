// Package splitunnel decides which destinations bypass the tunnel. Rules
// are CIDR ranges loaded from files; queries answer "is this IP covered"
// against an immutable trie that is replaced wholesale on every update.
package splitunnel

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/yl2chen/cidranger"
	"go.uber.org/zap"
)

// Matcher answers bypass queries against the currently loaded rule set.
// Readers never block readers; updates swap the entire trie at once, so a
// query is always consistent with one completed update.
type Matcher struct {
	mu     sync.RWMutex
	ranger cidranger.Ranger

	logger *zap.SugaredLogger
}

// NewMatcher creates a Matcher with an empty rule set.
func NewMatcher(logger *zap.SugaredLogger) *Matcher {
	return &Matcher{
		ranger: cidranger.NewPCTrieRanger(),
		logger: logger,
	}
}

// UpdateRules builds a fresh trie from the given rule files and swaps it
// in. Files that cannot be opened are skipped with a log entry; malformed
// lines are skipped silently. The swap happens only after every file has
// been read, so concurrent queries never observe a partial rule set.
func (m *Matcher) UpdateRules(paths []string) {
	ranger := cidranger.NewPCTrieRanger()

	total := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		n, err := loadRuleFile(ranger, path)
		if err != nil {
			m.logger.Warnw("skipping rule file", "path", path, "err", err)
			continue
		}
		m.logger.Infow("loaded rule file", "path", path, "rules", n)
		total += n
	}

	m.mu.Lock()
	m.ranger = ranger
	m.mu.Unlock()

	m.logger.Infow("split-tunnel rules updated", "rules", total)
}

// loadRuleFile streams one file into ranger and returns the number of
// entries inserted.
func loadRuleFile(ranger cidranger.Ranger, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("os.Open(%s): %s", path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		network, ok := parseRule(scanner.Text())
		if !ok {
			continue
		}
		if err := ranger.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
			continue
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading %s: %s", path, err)
	}
	return n, nil
}

// parseRule parses one line as a CIDR, or as a bare address treated as /32
// or /128. Comments and blank lines yield ok=false.
func parseRule(line string) (*net.IPNet, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}

	if _, network, err := net.ParseCIDR(line); err == nil {
		return network, true
	}

	ip := net.ParseIP(line)
	if ip == nil {
		return nil, false
	}

	mask := net.CIDRMask(32, 32)
	if ip.To4() == nil {
		mask = net.CIDRMask(128, 128)
	}
	return &net.IPNet{IP: ip, Mask: mask}, true
}

// ShouldBypass returns true if the IP is covered by the current rule set
// and should be routed directly instead of through the tunnel. Strings
// that are not IP literals return false; domain destinations are resolved
// remotely and never bypassed.
func (m *Matcher) ShouldBypass(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	contains, err := m.ranger.Contains(ip)
	if err != nil {
		return false
	}
	return contains
}
