package prompts

import "fmt"

// StylistSystemPrompt defines the assistant role for outfit recommendations.
const StylistSystemPrompt = `You are an AI Fashion Assistant specializing in analyzing fashion images and providing personalized clothing recommendations.`

// stylistUserPromptTemplate embeds the user question verbatim and demands a
// strict three-key JSON object. Each option value is a short clothing item
// description of at most 10 words.
const stylistUserPromptTemplate = "Analyze the given image along with the user question: ```%s``` and suggest matching clothing items. " +
	`You will provide exactly 3 options as given in the JSON schema below. Return your response in 10 words per option in the below JSON format.
{
  "Option_1": "string",
  "Option_2": "string",
  "Option_3": "string"
}`

// StylistUserPrompt renders the recommendation prompt for a user question.
func StylistUserPrompt(question string) string {
	return fmt.Sprintf(stylistUserPromptTemplate, question)
}
