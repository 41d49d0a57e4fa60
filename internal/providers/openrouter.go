package providers

var openRouterSpec = chatSpec{
	name:         "openrouter",
	endpoint:     "https://openrouter.ai/api/v1/chat/completions",
	defaultModel: "openai/gpt-4o-mini",
	headers: map[string]string{
		"X-Title": "IARA",
	},
}

var deepSeekSpec = chatSpec{
	name:         "deepseek",
	endpoint:     "https://api.deepseek.com/chat/completions",
	defaultModel: "deepseek-chat",
}

func NewOpenRouterProvider(keyName string) *ChatProvider {
	return newChatProvider(openRouterSpec, keyName, resolveKey(openRouterSpec.name, keyName), resolveModel(openRouterSpec.name))
}

func NewDeepSeekProvider(keyName string) *ChatProvider {
	return newChatProvider(deepSeekSpec, keyName, resolveKey(deepSeekSpec.name, keyName), resolveModel(deepSeekSpec.name))
}
