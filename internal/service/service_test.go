package service

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantName    string
		wantSearch  bool
		wantMatched bool
	}{
		{
			name:        "soundcloud track",
			url:         "https://soundcloud.com/x/y",
			wantName:    "SoundCloud",
			wantMatched: true,
		},
		{
			name:        "spotify track",
			url:         "https://open.spotify.com/track/abc",
			wantName:    "Spotify",
			wantSearch:  true,
			wantMatched: true,
		},
		{
			name:        "short youtube link",
			url:         "https://youtu.be/dQw4w9WgXcQ",
			wantName:    "YouTube",
			wantMatched: true,
		},
		{
			name:        "yandex music",
			url:         "https://music.yandex.ru/album/1/track/2",
			wantName:    "Yandex Music",
			wantSearch:  true,
			wantMatched: true,
		},
		{
			name:        "uppercase host",
			url:         "https://SOUNDCLOUD.COM/a/b",
			wantName:    "SoundCloud",
			wantMatched: true,
		},
		{
			name:        "unsupported",
			url:         "https://example.com/x",
			wantMatched: false,
		},
		{
			name:        "plain text",
			url:         "some song name",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ok := Classify(tt.url)
			if ok != tt.wantMatched {
				t.Fatalf("Classify(%q) matched = %v, want %v", tt.url, ok, tt.wantMatched)
			}

			if !ok {
				return
			}

			if svc.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", svc.DisplayName, tt.wantName)
			}

			if svc.NeedsSearch != tt.wantSearch {
				t.Errorf("NeedsSearch = %v, want %v", svc.NeedsSearch, tt.wantSearch)
			}
		})
	}
}

func TestSupportedNoDuplicates(t *testing.T) {
	names := Supported()

	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate service name %q", n)
		}

		seen[n] = true
	}

	if !seen["SoundCloud"] || !seen["Spotify"] || !seen["YouTube"] {
		t.Errorf("expected core services in %v", names)
	}
}
