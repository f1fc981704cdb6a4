package generator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/roach88/infinicraft/internal/element"
)

const promptPreamble = "Combine two elements into a new element. " +
	"Reply with one JSON object with a short \"name\" and exactly one \"emoji\". " +
	"Do not repeat the input names.\n\n"

// promptExamples are the worked analogies shown before the real pair.
var promptExamples = [][3]element.Element{
	{
		{Name: "Fire", Emoji: "🔥"},
		{Name: "Water", Emoji: "💧"},
		{Name: "Steam", Emoji: "\U0001F32B\uFE0F"},
	},
	{
		{Name: "Earth", Emoji: "🪨"},
		{Name: "Water", Emoji: "💧"},
		{Name: "Mud", Emoji: "🟫"},
	},
	{
		{Name: "Air", Emoji: "🍃"},
		{Name: "Fire", Emoji: "🔥"},
		{Name: "Smoke", Emoji: "💨"},
	},
}

// promptElement is the JSON shape the generator is asked to produce.
type promptElement struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// BuildPrompt returns the prompt for merging a and b. The output depends only
// on the names and emoji of its inputs.
func BuildPrompt(a, b element.Element) string {
	var sb strings.Builder
	sb.WriteString(promptPreamble)
	for _, ex := range promptExamples {
		sb.WriteString(encodeElement(ex[0]))
		sb.WriteString(" + ")
		sb.WriteString(encodeElement(ex[1]))
		sb.WriteString(" = ")
		sb.WriteString(encodeElement(ex[2]))
		sb.WriteString("\n")
	}
	sb.WriteString(encodeElement(a))
	sb.WriteString(" + ")
	sb.WriteString(encodeElement(b))
	sb.WriteString(" =")
	return sb.String()
}

func encodeElement(e element.Element) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// A struct of two strings always encodes.
	_ = enc.Encode(promptElement{Name: e.Name, Emoji: e.Emoji})
	return strings.TrimSuffix(buf.String(), "\n")
}
