package chat

import (
	"fmt"
	"strings"
)

// Тексты сценария поддержки.
const (
	WelcomeText       = "Hello! How can I help you today?"
	OptionsPrompt     = "Please select an option:"
	AcknowledgeText   = "Thanks for your message! One of our specialists will get back to you shortly."
	HelpTriggerPhrase = "help with the product"
)

// Варианты тем обращения в порядке показа.
const (
	OptionTechnical = "Technical issue"
	OptionInfo      = "More information about the product"
	OptionWarranty  = "Warranty"
	OptionReturn    = "Return or other request"
)

// TopicOptions возвращает список тем, предлагаемых ботом.
func TopicOptions() []string {
	return []string{OptionTechnical, OptionInfo, OptionWarranty, OptionReturn}
}

var topicReplies = map[string]string{
	OptionTechnical: "Sorry you are having trouble. Please describe the issue and our technical team will contact you shortly.",
	OptionInfo:      "Happy to help! A product specialist will send you the full details shortly.",
	OptionWarranty:  "Every product is covered by the manufacturer's warranty. Please keep your receipt; our team will contact you about your claim.",
	OptionReturn:    "We have registered your request. Our support team will contact you to arrange the return or follow up.",
}

// TopicReply возвращает заготовленный ответ бота на выбранную тему.
func TopicReply(option string) (string, bool) {
	reply, ok := topicReplies[option]
	return reply, ok
}

// Greeting формирует первое сообщение пользователя о выбранном товаре.
func Greeting(productName string) string {
	return fmt.Sprintf("I would like some %s %s", HelpTriggerPhrase, productName)
}

func isHelpRequest(text string) bool {
	return strings.Contains(strings.ToLower(text), HelpTriggerPhrase)
}
