package chat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Tool names declared to the completion provider.
const (
	toolGetEventInfo          = "get_event_info"
	toolSearchContent         = "search_content"
	toolGetParticipationGuide = "get_participation_guide"
)

// toolSpecs declares the callable tools. Their bodies are pure functions
// over the already-retrieved context text; no tool makes a network call.
func toolSpecs() []pipeline.ToolSpec {
	return []pipeline.ToolSpec{
		{
			Name:        toolGetEventInfo,
			Description: "Get detailed information about the event including rules, timeline, prizes, and participation details",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"info_type": map[string]any{
						"type":        "string",
						"enum":        []string{"rules", "timeline", "prizes", "participation", "judging", "all"},
						"description": "Type of information to retrieve",
					},
				},
			},
		},
		{
			Name:        toolSearchContent,
			Description: "Search for specific content within the event information",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query to find specific information",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolGetParticipationGuide,
			Description: "Get a step-by-step guide on how to participate in this event",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"focus_area": map[string]any{
						"type":        "string",
						"enum":        []string{"registration", "submission", "teams", "technical", "all"},
						"description": "Specific area of participation to focus on",
					},
				},
			},
		},
	}
}

// Typed argument structs, one per declared tool.

type eventInfoArgs struct {
	InfoType string `json:"info_type"`
}

type searchContentArgs struct {
	Query string `json:"query"`
}

type participationGuideArgs struct {
	FocusArea string `json:"focus_area"`
}

// runTool dispatches one tool call against the retrieved context. Unknown
// tools return an explanatory result rather than failing the whole answer.
func runTool(call pipeline.ToolCall, context []string) string {
	contextText := strings.Join(context, "\n\n")

	switch call.Name {
	case toolGetEventInfo:
		var args eventInfoArgs
		decodeArgs(call.Arguments, &args)
		return eventInfo(contextText, args.InfoType)

	case toolSearchContent:
		var args searchContentArgs
		decodeArgs(call.Arguments, &args)
		if args.Query == "" {
			return "Error: Search query is required"
		}
		return searchContent(contextText, args.Query)

	case toolGetParticipationGuide:
		var args participationGuideArgs
		decodeArgs(call.Arguments, &args)
		return participationGuide(contextText, args.FocusArea)

	default:
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}
}

// decodeArgs tolerates malformed argument JSON; the zero-value struct
// yields the tool's default behavior.
func decodeArgs(raw string, out any) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), out)
}

func eventInfo(contextText, infoType string) string {
	switch infoType {
	case "rules":
		return filterLines(contextText, "Event Rules",
			[]string{"rule", "guideline", "requirement", "criteria", "must", "should"},
			"No specific rules found in the event information.")
	case "timeline":
		return timeline(contextText)
	case "prizes":
		return filterLines(contextText, "Prizes and Awards",
			[]string{"prize", "award", "win", "reward", "cash", "money", "$"},
			"No specific prize information found in the event information.")
	case "participation":
		return filterLines(contextText, "Participation Information",
			[]string{"participate", "join", "enter", "register", "sign up", "who can"},
			"No specific participation information found in the event information.")
	case "judging":
		return filterLines(contextText, "Judging Information",
			[]string{"judge", "judging", "criteria", "evaluation", "score", "assessment"},
			"No specific judging information found in the event information.")
	default:
		return "Event Information:\n\n" + contextText
	}
}

func searchContent(contextText, query string) string {
	queryLower := strings.ToLower(query)
	var matching []string
	for _, line := range strings.Split(contextText, "\n") {
		if strings.Contains(strings.ToLower(line), queryLower) {
			matching = append(matching, line)
		}
	}
	if len(matching) == 0 {
		return fmt.Sprintf("No specific information found for %q. Here's the general event information:\n\n%s", query, contextText)
	}
	return fmt.Sprintf("Search results for %q:\n\n%s", query, strings.Join(matching, "\n"))
}

func participationGuide(contextText, focusArea string) string {
	switch focusArea {
	case "registration":
		return filterLines(contextText, "Registration Guide",
			[]string{"register", "registration", "sign up", "enroll"},
			"No specific registration information found. Please check the event website for registration details.")
	case "submission":
		return filterLines(contextText, "Submission Guide",
			[]string{"submit", "submission", "deadline", "deliverable"},
			"No specific submission information found. Please check the event website for submission guidelines.")
	case "teams":
		return filterLines(contextText, "Team Information",
			[]string{"team", "group", "collaborate", "member"},
			"No specific team information found. Please check the event website for team guidelines.")
	case "technical":
		return filterLines(contextText, "Technical Information",
			[]string{"technology", "tech stack", "api", "framework", "library", "tool"},
			"No specific technical information found. Please check the event website for technical requirements.")
	default:
		return "Complete Participation Guide:\n\n" + contextText
	}
}

var timelineDateRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})\b`)

func timeline(contextText string) string {
	var matching []string
	for _, line := range strings.Split(contextText, "\n") {
		if timelineDateRe.MatchString(line) {
			matching = append(matching, line)
		}
	}
	if len(matching) == 0 {
		return "No specific timeline found in the event information."
	}
	return "Event Timeline:\n\n" + strings.Join(matching, "\n")
}

// filterLines keeps context lines containing any of the keywords.
func filterLines(contextText, header string, keywords []string, emptyMsg string) string {
	var matching []string
	for _, line := range strings.Split(contextText, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matching = append(matching, line)
				break
			}
		}
	}
	if len(matching) == 0 {
		return emptyMsg
	}
	return header + ":\n\n" + strings.Join(matching, "\n")
}
