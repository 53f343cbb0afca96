// utils/embed.go
package utils

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed colours.
const (
	ColorSuccess = 0x2ecc71
	ColorError   = 0xe74c3c
	ColorInfo    = 0x3498db
	ColorWarning = 0xf39c12
)

func newEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func SuccessEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed("✅ "+title, description, ColorSuccess)
}

func ErrorEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed("❌ "+title, description, ColorError)
}

func InfoEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed("🔑 "+title, description, ColorInfo)
}

func WarningEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed("⚠️ "+title, description, ColorWarning)
}

// PermissionDeniedEmbed is the reply sent when a command guard rejects an
// invocation.
func PermissionDeniedEmbed(description string) *discordgo.MessageEmbed {
	return ErrorEmbed("Permission Denied", description)
}

func Field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}
