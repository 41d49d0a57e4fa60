package providers

var groqSpec = chatSpec{
	name:         "groq",
	endpoint:     "https://api.groq.com/openai/v1/chat/completions",
	defaultModel: "llama-3.1-8b-instant",
}

// NewGroqProvider returns a provider for Groq's OpenAI-compatible API.
func NewGroqProvider(keyName string) *ChatProvider {
	return newChatProvider(groqSpec, keyName, resolveKey(groqSpec.name, keyName), resolveModel(groqSpec.name))
}
