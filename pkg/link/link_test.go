package link

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		link    string
		want    Connection
		wantErr bool
	}{
		{
			name: "plain link",
			link: "mw://hunter2@mc.example.com:25565#Home",
			want: Connection{Name: "Home", Server: "mc.example.com:25565", Password: "hunter2"},
		},
		{
			name: "encoded password and name",
			link: "mw://p%40ss%2Fword@10.0.0.1:25565#My%20Server",
			want: Connection{Name: "My Server", Server: "10.0.0.1:25565", Password: "p@ss/word"},
		},
		{
			name: "no name fragment",
			link: "mw://secret@host:1#",
			want: Connection{Name: "", Server: "host:1", Password: "secret"},
		},
		{
			name:    "wrong scheme",
			link:    "http://secret@host:1#x",
			wantErr: true,
		},
		{
			name:    "no host",
			link:    "mw://",
			wantErr: true,
		},
		{
			name:    "not a url",
			link:    "mw://%zz@::bad",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tc.link)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded with %+v, want error", tc.link, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %s", tc.link, err)
			}

			if *got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.link, *got, tc.want)
			}
		})
	}
}

func TestBuildParse_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		server   string
		password string
	}{
		{name: "Home", server: "mc.example.com:25565", password: "hunter2"},
		{name: "My Server #1", server: "10.0.0.1:1", password: "p@ss wörd/100%"},
		{name: "日本のサーバー", server: "host:65535", password: "パスワード"},
		{name: "", server: "h:1", password: "x"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			built := Build(tc.name, tc.server, tc.password)
			got, err := Parse(built)
			if err != nil {
				t.Fatalf("Parse(Build()) of %q: %s", built, err)
			}

			if got.Name != tc.name {
				t.Errorf("Name = %q, want %q", got.Name, tc.name)
			}
			if got.Server != tc.server {
				t.Errorf("Server = %q, want %q", got.Server, tc.server)
			}
			if got.Password != tc.password {
				t.Errorf("Password = %q, want %q", got.Password, tc.password)
			}
		})
	}
}
