package bot

import (
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/trackbot/internal/pipeline"
	"github.com/italolelis/trackbot/internal/service"
)

const (
	statusDownloading = "⏳ Downloading track..."
	statusSearching   = "⏳ Searching for the track (this service needs a search)..."

	accessDeniedText = "❌ You don't have permission to view statistics.\nThis command is owner-only."
	cooldownText     = "⏳ Slow down a little and try again in a few seconds."
	busyText         = "⏳ Too many downloads in flight right now. Try again in a minute."
)

func welcomeText() string {
	var b strings.Builder

	b.WriteString("🎵 Welcome to Music Downloader!\n\n")
	b.WriteString("Send me a track link from a supported service and I'll fetch it for you.\n\n")
	b.WriteString("✅ Supported services:\n")

	for _, name := range service.Supported() {
		b.WriteString("🎵 " + name + "\n")
	}

	b.WriteString("\nCommands:\n/start - show this message\n/help - how it works")

	return b.String()
}

func helpText() string {
	var b strings.Builder

	b.WriteString("📝 How it works:\n\n")
	b.WriteString("1. Copy a track link from a supported service\n")
	b.WriteString("2. Send it here\n")
	b.WriteString("3. Wait for the download\n")
	b.WriteString("4. Receive the track as an MP3\n\n")
	b.WriteString("✅ Supported services:\n")

	for _, name := range service.Supported() {
		b.WriteString("🎵 " + name + "\n")
	}

	b.WriteString("\n💫 Features:\n✓ Clean filenames\n✓ Cover art when available\n✓ MP3 audio\n\n")
	b.WriteString("Commands:\n/start - welcome\n/help - this help")

	return b.String()
}

func unsupportedText() string {
	var b strings.Builder

	b.WriteString("❌ This service isn't supported yet.\n\nSupported services:\n")

	for _, name := range service.Supported() {
		b.WriteString("🎵 " + name + "\n")
	}

	return b.String()
}

// errorText converts a pipeline or delivery error into the plain-text reply
// shown to the user.
func errorText(err error) string {
	var (
		metaErr     *pipeline.MetadataError
		extractErr  *pipeline.ExtractionError
		tooLargeErr *pipeline.ArtifactTooLargeError
		deliveryErr *pipeline.DeliveryError
	)

	switch {
	case errors.As(err, &metaErr):
		return "❌ Could not resolve track info for that link.\n\nTry sending the track title and artist instead."
	case errors.As(err, &extractErr):
		return "❌ Download failed: " + extractErr.Reason + "."
	case errors.As(err, &tooLargeErr):
		return "❌ The file is too large (" + humanize.Bytes(uint64(tooLargeErr.Size)) +
			"). Telegram caps uploads at " + humanize.Bytes(uint64(tooLargeErr.Limit)) + "."
	case errors.As(err, &deliveryErr):
		return "❌ Failed to send the file after several attempts. Try again later."
	default:
		return "❌ Something went wrong. Try again later."
	}
}
