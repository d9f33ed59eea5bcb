// Package service classifies music service URLs into the sources the bot
// knows how to fetch from.
package service

import "strings"

// Service identifies a supported music source.
type Service struct {
	// Match is the substring that identifies the service in a URL.
	Match string
	// DisplayName is the user-facing name of the service.
	DisplayName string
	// NeedsSearch marks services whose catalogs cannot be fetched directly
	// (DRM protected); tracks are resolved to metadata and searched instead.
	NeedsSearch bool
}

// Order matters: first match wins.
var services = []Service{
	{Match: "soundcloud.com", DisplayName: "SoundCloud"},
	{Match: "open.spotify.com", DisplayName: "Spotify", NeedsSearch: true},
	{Match: "spotify.com", DisplayName: "Spotify", NeedsSearch: true},
	{Match: "youtu.be", DisplayName: "YouTube"},
	{Match: "youtube.com", DisplayName: "YouTube"},
	{Match: "music.yandex.ru", DisplayName: "Yandex Music", NeedsSearch: true},
	{Match: "yandex.ru/music", DisplayName: "Yandex Music", NeedsSearch: true},
	{Match: "vk.com", DisplayName: "VK Music"},
	{Match: "vkontakte.ru", DisplayName: "VK Music"},
	{Match: "tidal.com", DisplayName: "Tidal"},
}

// Classify maps a URL to the service it belongs to. The second return value
// is false when no supported service matches.
func Classify(url string) (Service, bool) {
	lowered := strings.ToLower(url)

	for _, svc := range services {
		if strings.Contains(lowered, svc.Match) {
			return svc, true
		}
	}

	return Service{}, false
}

// Supported returns the display names of all supported services, in table
// order, without duplicates. Used for the welcome and error texts.
func Supported() []string {
	names := make([]string, 0, len(services))
	seen := make(map[string]bool, len(services))

	for _, svc := range services {
		if seen[svc.DisplayName] {
			continue
		}

		seen[svc.DisplayName] = true
		names = append(names, svc.DisplayName)
	}

	return names
}
