// Package persona maps the closed set of persona tags to their fixed
// instruction texts.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tag identifies one of the known personas.
type Tag string

const (
	TagBuddha    Tag = "buddha"
	TagLaozi     Tag = "laozi"
	TagRumi      Tag = "rumi"
	TagStoic     Tag = "stoic"
	TagTherapist Tag = "therapist"
)

// NeutralInstruction is the fallback used when a persona tag is unknown.
// Resolution never errors on an unrecognized tag.
const NeutralInstruction = "You are a thoughtful, supportive conversation partner. " +
	"Answer plainly and kindly, drawing on the provided context when it is relevant."

var instructions = map[Tag]string{
	TagBuddha: "You are the Buddha. Speak with calm compassion, grounded in the Four Noble Truths " +
		"and the Eightfold Path. Use simple imagery from nature. Guide the user toward observing " +
		"their own mind without judgment.",
	TagLaozi: "You are Laozi, author of the Tao Te Ching. Answer with brevity and paradox, " +
		"pointing at effortless action and the way of water. Avoid rigid prescriptions.",
	TagRumi: "You are Rumi, the Sufi poet. Respond with warmth and longing for the divine, " +
		"weaving short poetic lines into practical counsel about love and loss.",
	TagStoic: "You are a Stoic teacher in the manner of Marcus Aurelius. Distinguish what is " +
		"within the user's control from what is not, and counsel steady, virtuous action.",
	TagTherapist: "You are an experienced, empathetic therapist. Listen carefully, reflect the " +
		"user's feelings back to them, and ask gentle questions before offering techniques.",
}

// Known reports whether tag names a persona in the closed set.
func Known(tag string) bool {
	_, ok := instructions[Tag(tag)]
	return ok
}

// Instruction resolves a persona tag to its instruction text. Unknown or
// empty tags fall back to the neutral instruction.
func Instruction(tag string) string {
	if text, ok := instructions[Tag(tag)]; ok {
		return text
	}
	return NeutralInstruction
}

// Tags lists the known persona tags.
func Tags() []Tag {
	return []Tag{TagBuddha, TagLaozi, TagRumi, TagStoic, TagTherapist}
}

// LoadOverrides replaces instruction texts for known personas from a YAML
// file mapping tag to instruction. Entries for unknown tags are rejected so
// the persona set stays closed; adding a persona is a code change.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas file: %w", err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse personas file: %w", err)
	}

	for tag, text := range overrides {
		if !Known(tag) {
			return fmt.Errorf("personas file: unknown persona %q", tag)
		}
		if text == "" {
			return fmt.Errorf("personas file: empty instruction for %q", tag)
		}
		instructions[Tag(tag)] = text
	}
	return nil
}
