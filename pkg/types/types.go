// Package types defines the shared vocabulary used across all petspeak
// packages.
//
// These types form the lingua franca between the capture client, the
// analysis providers, the history store, and the HTTP API. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting enumerations live here to avoid circular imports.
package types

// AnimalType classifies the kind of pet a recording belongs to.
type AnimalType string

const (
	AnimalDog     AnimalType = "dog"
	AnimalCat     AnimalType = "cat"
	AnimalBird    AnimalType = "bird"
	AnimalHamster AnimalType = "hamster"
	AnimalRabbit  AnimalType = "rabbit"
	AnimalOther   AnimalType = "other"
)

// AnimalTypes lists every recognised animal type.
var AnimalTypes = []AnimalType{
	AnimalDog, AnimalCat, AnimalBird, AnimalHamster, AnimalRabbit, AnimalOther,
}

// IsValid reports whether a is a recognised animal type.
func (a AnimalType) IsValid() bool {
	for _, v := range AnimalTypes {
		if a == v {
			return true
		}
	}
	return false
}

// NeedType is the interpreted need or emotion a pet expresses in a
// recording. NeedUnknown is the defaulting fallback for untrusted
// upstream output.
type NeedType string

const (
	NeedHungry      NeedType = "hungry"
	NeedPlayful     NeedType = "playful"
	NeedStressed    NeedType = "stressed"
	NeedTired       NeedType = "tired"
	NeedAttention   NeedType = "attention"
	NeedHappy       NeedType = "happy"
	NeedAnxious     NeedType = "anxious"
	NeedTerritorial NeedType = "territorial"
	NeedPain        NeedType = "pain"
	NeedUnknown     NeedType = "unknown"
)

// NeedTypes lists every recognised need type.
var NeedTypes = []NeedType{
	NeedHungry, NeedPlayful, NeedStressed, NeedTired, NeedAttention,
	NeedHappy, NeedAnxious, NeedTerritorial, NeedPain, NeedUnknown,
}

// IsValid reports whether n is a recognised need type.
func (n NeedType) IsValid() bool {
	for _, v := range NeedTypes {
		if n == v {
			return true
		}
	}
	return false
}

// MoodType is the coarse emotional tone attached to an interpretation.
type MoodType string

const (
	MoodHappy      MoodType = "happy"
	MoodExcited    MoodType = "excited"
	MoodContent    MoodType = "content"
	MoodCurious    MoodType = "curious"
	MoodAnxious    MoodType = "anxious"
	MoodScared     MoodType = "scared"
	MoodFrustrated MoodType = "frustrated"
	MoodLonely     MoodType = "lonely"
	MoodUrgent     MoodType = "urgent"
	MoodNeutral    MoodType = "neutral"
)

// MoodTypes lists every recognised mood.
var MoodTypes = []MoodType{
	MoodHappy, MoodExcited, MoodContent, MoodCurious, MoodAnxious,
	MoodScared, MoodFrustrated, MoodLonely, MoodUrgent, MoodNeutral,
}

// IsValid reports whether m is a recognised mood.
func (m MoodType) IsValid() bool {
	for _, v := range MoodTypes {
		if m == v {
			return true
		}
	}
	return false
}

// LanguageCode selects the language the translation and tips are
// rendered in.
type LanguageCode string

// LanguageEnglish is the default language when a request does not name one.
const LanguageEnglish LanguageCode = "en"

// Language pairs a code with its display names for UI surfaces.
type Language struct {
	Code       LanguageCode
	Name       string
	NativeName string
}

// Languages lists every supported translation language.
var Languages = []Language{
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "ar", Name: "Arabic", NativeName: "العربية"},
	{Code: "zh", Name: "Chinese", NativeName: "中文"},
	{Code: "es", Name: "Spanish", NativeName: "Español"},
	{Code: "fr", Name: "French", NativeName: "Français"},
	{Code: "de", Name: "German", NativeName: "Deutsch"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語"},
	{Code: "ko", Name: "Korean", NativeName: "한국어"},
	{Code: "pt", Name: "Portuguese", NativeName: "Português"},
	{Code: "ru", Name: "Russian", NativeName: "Русский"},
}

// IsValid reports whether l is a supported language code.
func (l LanguageCode) IsValid() bool {
	for _, lang := range Languages {
		if lang.Code == l {
			return true
		}
	}
	return false
}
