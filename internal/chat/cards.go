package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mckinnonit/mckinnonville/internal/services"
)

// Response is the reply payload returned to the chat platform. Exactly one
// of Text or Dialog/Card content is set.
type Response struct {
	Text           string          `json:"text,omitempty"`
	ActionResponse *ActionResponse `json:"action_response,omitempty"`
	Cards          []Card          `json:"cards_v2,omitempty"`
}

type ActionResponse struct {
	Type   string  `json:"type"` // NEW_MESSAGE or DIALOG
	Dialog *Dialog `json:"dialog_action,omitempty"`
}

type Dialog struct {
	Body Card `json:"dialog"`
}

type Card struct {
	Header   *CardHeader `json:"header,omitempty"`
	Sections []Section   `json:"sections,omitempty"`
	Submit   *Button     `json:"submit,omitempty"`
}

type CardHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type Section struct {
	Header  string   `json:"header,omitempty"`
	Widgets []Widget `json:"widgets"`
}

// Widget is a single card element; exactly one field is set.
type Widget struct {
	TextParagraph  string          `json:"text_paragraph,omitempty"`
	DecoratedText  *DecoratedText  `json:"decorated_text,omitempty"`
	SelectionInput *SelectionInput `json:"selection_input,omitempty"`
	Buttons        []Button        `json:"buttons,omitempty"`
}

type DecoratedText struct {
	TopLabel    string `json:"top_label,omitempty"`
	Text        string `json:"text"`
	BottomLabel string `json:"bottom_label,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
}

type SelectionInput struct {
	Name  string       `json:"name"`
	Type  string       `json:"type"` // DROPDOWN or RADIO_BUTTON
	Label string       `json:"label,omitempty"`
	Items []SelectItem `json:"items"`
}

type SelectItem struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type Button struct {
	Text     string `json:"text"`
	Function string `json:"function,omitempty"`
}

// TextResponse builds a plain text reply.
func TextResponse(text string) *Response {
	return &Response{
		Text:           text,
		ActionResponse: &ActionResponse{Type: "NEW_MESSAGE"},
	}
}

// DialogText builds a dialog containing a single paragraph.
func DialogText(text string) *Response {
	return dialog(Card{Sections: []Section{{Widgets: []Widget{{TextParagraph: text}}}}})
}

// SignUpDialog introduces the game and offers the sign-up button.
func SignUpDialog(mapURL string) *Response {
	intro := "Welcome to McKinnonVille! Register as a citizen of your house's village, " +
		"pick an occupation, take weekly quizzes to earn promotions and vote on village ordinances."
	if mapURL != "" {
		intro = "View the village map: " + mapURL + "\n\n" + intro
	}
	return dialog(Card{
		Header: &CardHeader{Title: "McKinnonVille", Subtitle: "How to play"},
		Sections: []Section{{
			Widgets: []Widget{
				{TextParagraph: intro},
				{Buttons: []Button{{Text: "Sign up", Function: FuncOccupationDialog}}},
			},
		}},
	})
}

// StatsCard renders a citizen's profile.
func StatsCard(c *services.Citizen) *Response {
	return &Response{
		ActionResponse: &ActionResponse{Type: "NEW_MESSAGE"},
		Cards: []Card{{
			Header: &CardHeader{Title: c.Name, Subtitle: "Your McKinnonVille"},
			Sections: []Section{{
				Widgets: []Widget{
					{DecoratedText: &DecoratedText{TopLabel: "House", Text: c.House}},
					{DecoratedText: &DecoratedText{TopLabel: "Plot", Text: c.Plot}},
					{DecoratedText: &DecoratedText{TopLabel: "Occupation", Text: c.Occupation,
						BottomLabel: "Level " + strconv.Itoa(c.OccupationLevel)}},
					{DecoratedText: &DecoratedText{TopLabel: "Gold", Text: strconv.Itoa(c.Gold)}},
				},
			}},
		}},
	}
}

// OccupationDialog lists the occupation catalogue with the village balance
// so players can pick what their village needs.
func OccupationDialog(occs []*services.Occupation, house string, v *services.Village) *Response {
	widgets := []Widget{
		{TextParagraph: fmt.Sprintf(
			"To win McKinnonVille, your village %s needs to balance Education, Health and Happiness. "+
				"Each occupation contributes differently, and you will be quizzed on it each week to seek promotion.", house)},
	}
	if v != nil {
		widgets = append(widgets,
			Widget{TextParagraph: fmt.Sprintf("%s's Village Balance", house)},
			Widget{DecoratedText: &DecoratedText{TopLabel: "Education", Text: balanceBar(v.Education)}},
			Widget{DecoratedText: &DecoratedText{TopLabel: "Health", Text: balanceBar(v.Health)}},
			Widget{DecoratedText: &DecoratedText{TopLabel: "Happiness", Text: balanceBar(v.Happiness)}},
		)
	}
	items := make([]SelectItem, 0, len(occs))
	for _, o := range occs {
		label := strings.TrimSpace(o.Icon + " " + o.Name)
		items = append(items, SelectItem{Text: label, Value: o.Name})
	}
	widgets = append(widgets, Widget{SelectionInput: &SelectionInput{
		Name:  InputOccupation,
		Type:  "DROPDOWN",
		Label: "Occupations",
		Items: items,
	}})
	return dialog(Card{
		Header:   &CardHeader{Title: "Choose your occupation"},
		Sections: []Section{{Widgets: widgets}},
		Submit:   &Button{Text: "Sign up", Function: FuncOccupationSelection},
	})
}

// QuizCard renders a question set, one radio group per question keyed by
// question id with 1-based option values.
func QuizCard(week int, questions []*services.Question) *Response {
	sections := make([]Section, 0, len(questions))
	for i, q := range questions {
		items := make([]SelectItem, 0, len(q.Options))
		for j, opt := range q.Options {
			items = append(items, SelectItem{Text: opt, Value: strconv.Itoa(j + 1)})
		}
		sections = append(sections, Section{
			Header: fmt.Sprintf("Question %d", i+1),
			Widgets: []Widget{
				{TextParagraph: q.Text},
				{SelectionInput: &SelectionInput{Name: q.ID, Type: "RADIO_BUTTON", Items: items}},
			},
		})
	}
	return dialog(Card{
		Header:   &CardHeader{Title: fmt.Sprintf("Week %d Quiz", week), Subtitle: "A perfect score earns a promotion."},
		Sections: sections,
		Submit:   &Button{Text: "Submit answers", Function: FuncQuizSubmission},
	})
}

// VotingDialog renders the week's ordinance options as a radio group.
func VotingDialog(week int, options []*services.VoteOption) *Response {
	items := make([]SelectItem, 0, len(options))
	for _, opt := range options {
		items = append(items, SelectItem{
			Text:  opt.Name + "\n" + opt.Description,
			Value: opt.ID,
		})
	}
	return dialog(Card{
		Header: &CardHeader{
			Title:    fmt.Sprintf("Week %d Ordinance Vote", week),
			Subtitle: "Please select one of the following options to vote on.",
		},
		Sections: []Section{{Widgets: []Widget{
			{SelectionInput: &SelectionInput{Name: InputVoteOption, Type: "RADIO_BUTTON", Items: items}},
		}}},
		Submit: &Button{Text: "Submit Vote", Function: FuncVoteSubmission},
	})
}

// Card function names and form input keys shared with the event handlers.
const (
	FuncOccupationDialog    = "handleSendOccupationDialog"
	FuncOccupationSelection = "handleOccupationSelection"
	FuncQuizSubmission      = "handleQuizSubmission"
	FuncVoteSubmission      = "handleVoteSubmission"

	InputOccupation = "occupations"
	InputVoteOption = "voteOption"
)

func dialog(card Card) *Response {
	return &Response{ActionResponse: &ActionResponse{Type: "DIALOG", Dialog: &Dialog{Body: card}}}
}

// balanceBar renders a 0..1 stat as a five-step bar.
func balanceBar(v float64) string {
	filled := int(v*5 + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > 5 {
		filled = 5
	}
	return strings.Repeat("■", filled) + strings.Repeat("□", 5-filled)
}
