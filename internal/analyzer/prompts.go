package analyzer

import (
	"fmt"

	"github.com/petspeakapp/petspeak/pkg/types"
)

// behaviouristPrompts holds the per-animal expert persona injected into the
// interpretation prompt. Animals without a dedicated entry fall back to
// defaultBehaviouristPrompt.
var behaviouristPrompts = map[types.AnimalType]string{
	types.AnimalDog: `You are an expert in canine behavior and communication. Analyze the following audio transcription/description of a dog's vocalization and determine what the dog is trying to communicate.

Common dog vocalizations:
- Barking: Can indicate excitement, alerting, fear, seeking attention, playfulness
- Whining/Whimpering: Often indicates stress, anxiety, wanting something, submission, or pain
- Growling: Warning, fear, or playful (context dependent)
- Howling: Communication, loneliness, response to sounds
- Yelping: Sudden pain or fear`,

	types.AnimalCat: `You are an expert in feline behavior and communication. Analyze the following audio transcription/description of a cat's vocalization and determine what the cat is trying to communicate.

Common cat vocalizations:
- Meowing: Greeting, attention seeking, hunger, complaint
- Purring: Content, self-soothing, sometimes pain
- Hissing/Growling: Fear, aggression, warning
- Chirping/Chattering: Excitement, hunting instinct
- Yowling: Mating, territorial, distress`,

	types.AnimalBird: `You are an expert in avian behavior and communication. Analyze the following audio transcription/description of a bird's vocalization and determine what the bird is trying to communicate.

Common bird vocalizations:
- Singing: Territory marking, mating, happiness
- Chirping: Communication, alerting
- Screaming: Attention, fear, excitement
- Talking/Mimicking: Social interaction
- Quiet clicking: Content, curious`,
}

const defaultBehaviouristPrompt = `You are an expert in animal behavior and communication. Analyze the following audio transcription/description of an animal's vocalization and determine what the animal is trying to communicate.`

// SystemPrompt returns the behaviourist persona for the interpretation step.
const SystemPrompt = "You are an expert animal behaviorist. Always respond with valid JSON only."

// animalLabel returns the word used for the animal in prompt text.
func animalLabel(animal types.AnimalType) string {
	if animal == "" || animal == types.AnimalOther {
		return "pet"
	}
	return string(animal)
}

// TranscriptionPrompt steers the speech-to-text model towards describing
// animal sounds instead of searching for human speech.
func TranscriptionPrompt(animal types.AnimalType) string {
	return fmt.Sprintf("This is a %s making sounds. Describe the sounds you hear including barks, meows, chirps, whines, growls, or other animal vocalizations.", animalLabel(animal))
}

// PlaceholderTranscription is substituted when the speech-to-text step fails,
// which is expected for non-speech audio.
func PlaceholderTranscription(animal types.AnimalType) string {
	return fmt.Sprintf("[%s vocalization detected]", animalLabel(animal))
}

// InterpretationPrompt builds the user message for the interpretation step.
// transcription may be empty; a generic description is substituted.
func InterpretationPrompt(transcription string, animal types.AnimalType, language types.LanguageCode) string {
	persona, ok := behaviouristPrompts[animal]
	if !ok {
		persona = defaultBehaviouristPrompt
	}
	if transcription == "" {
		transcription = animalLabel(animal) + " making sounds"
	}
	lang := language
	if lang == "" {
		lang = "en"
	}

	return fmt.Sprintf(`%s

Audio description/transcription: %q

Based on this sound, determine:
1. What animal is vocalizing and what need or emotion is it expressing?
2. How confident are you in this assessment (0-100)?
3. A short "translation" of what the animal would say, in language %q.
4. One recommended action for the owner, 3-4 helpful tips, and up to 3 product suggestions.

Write translation, action, tips, and product text in language %q.

You MUST respond with valid JSON in this exact format:
{
  "transcription": "<echo of the audio description>",
  "translation": "<what the animal would say>",
  "animalType": "dog" | "cat" | "bird" | "hamster" | "rabbit" | "other",
  "mood": "happy" | "excited" | "content" | "curious" | "anxious" | "scared" | "frustrated" | "lonely" | "urgent" | "neutral",
  "detectedNeed": "hungry" | "playful" | "stressed" | "tired" | "attention" | "happy" | "anxious" | "territorial" | "pain" | "unknown",
  "confidence": <number between 0 and 100>,
  "action": {"title": "...", "description": "...", "urgent": <boolean>},
  "tips": ["tip 1", "tip 2", "tip 3"],
  "products": [{"name": "...", "description": "...", "category": "..."}]
}`, persona, transcription, lang, lang)
}
