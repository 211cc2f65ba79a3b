package provider

// DeepgramProvider implements Provider for Deepgram transcription services
type DeepgramProvider struct{}

func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

func (p *DeepgramProvider) RequiresAPIKey() bool {
	return true
}

func (p *DeepgramProvider) ValidateAPIKey(key string) bool {
	// Deepgram API keys are alphanumeric, just check non-empty
	return len(key) > 0
}

func (p *DeepgramProvider) Models() []Model {
	// Nova-3 language support, mapped to our catalog codes
	// from https://developers.deepgram.com/docs/models-languages-overview
	nova3Langs := []string{
		"ar", "be", "bs", "bg", "ca", "hr", "cs", "da", "nl", "en", "et", "fi",
		"fr", "de", "el", "hi", "hu", "id", "it", "ja", "kn", "ko", "lv", "lt",
		"mk", "ms", "mr", "no", "pl", "pt", "ro", "ru", "sr", "sk", "sl", "es",
		"sv", "tl", "ta", "tr", "uk", "vi",
	}

	// Nova-2 language support, subset of nova-3 plus Chinese and Thai
	nova2Langs := []string{
		"bg", "ca", "zh", "cs", "da", "nl", "en", "et", "fi", "fr", "de", "el",
		"hi", "hu", "id", "it", "ja", "ko", "lv", "lt", "ms", "no", "pl", "pt",
		"ro", "ru", "sk", "es", "sv", "th", "tr", "uk", "vi",
	}

	return []Model{
		{
			ID:                 "nova-3",
			Name:               "Nova-3",
			Description:        "Best accuracy, 40+ languages",
			Type:               Transcription,
			SupportedLanguages: nova3Langs,
		},
		{
			ID:                 "nova-2",
			Name:               "Nova-2",
			Description:        "Fast and proven, broad language coverage",
			Type:               Transcription,
			SupportedLanguages: nova2Langs,
		},
	}
}

func (p *DeepgramProvider) DefaultModel(t ModelType) string {
	if t == Transcription {
		return "nova-2"
	}
	return ""
}
