package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"outreach-service/internal/domain/entity"
)

// RendererConfig holds the values shared by every template.
type RendererConfig struct {
	SenderName  string
	CompanyName string
	// BaseURL is the CRM address used in owner notification links.
	BaseURL string
}

// Data is what every template is executed with.
type Data struct {
	Lead        *entity.Lead
	Owner       *entity.Owner
	FirstName   string
	SenderName  string
	CompanyName string
	LeadURL     string
	Ordinal     int
	FromStage   string
	ToStage     string
}

type emailTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

type templateSource struct {
	name, subject, html, text string
}

// Renderer renders automated emails from a fixed catalogue.
type Renderer struct {
	config         RendererConfig
	intro          emailTemplate
	leadFollowUps  []emailTemplate
	proposalFollow []emailTemplate
	notifications  map[entity.EmailType]emailTemplate
	stageChange    emailTemplate
}

// NewRenderer parses the catalogue. It only fails on a broken template.
func NewRenderer(config RendererConfig) (*Renderer, error) {
	if config.SenderName == "" {
		config.SenderName = "The Sales Team"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	r := &Renderer{
		config:        config,
		notifications: make(map[entity.EmailType]emailTemplate),
	}

	var err error
	if r.intro, err = parse(leadIntro); err != nil {
		return nil, err
	}
	if r.leadFollowUps, err = parseAll(leadFollowUps); err != nil {
		return nil, err
	}
	if r.proposalFollow, err = parseAll(proposalFollowUps); err != nil {
		return nil, err
	}
	if r.stageChange, err = parse(stageChangeAlert); err != nil {
		return nil, err
	}
	for emailType, src := range ownerNotifications {
		t, err := parse(src)
		if err != nil {
			return nil, err
		}
		r.notifications[emailType] = t
	}
	return r, nil
}

// Render renders the email for an automation action.
func (r *Renderer) Render(action entity.Action, lead *entity.Lead, owner *entity.Owner) (entity.RenderedEmail, error) {
	if lead == nil {
		return entity.RenderedEmail{}, fmt.Errorf("render %s: lead is required", action.EmailType)
	}

	var t emailTemplate
	switch action.EmailType {
	case entity.EmailTypeLeadIntro:
		t = r.intro
	case entity.EmailTypeLeadFollowUp:
		// ordinal 0 is the intro
		t = pick(r.leadFollowUps, action.Ordinal-1)
	case entity.EmailTypeProposalFollowUp:
		t = pick(r.proposalFollow, action.Ordinal)
	case entity.EmailTypeQualifiedNotification, entity.EmailTypeNegotiationsNotification:
		t = r.notifications[action.EmailType]
	default:
		return entity.RenderedEmail{}, fmt.Errorf("no template for email type %q", action.EmailType)
	}

	return t.execute(r.data(lead, owner, action.Ordinal))
}

// RenderStageChange renders the owner alert for a stage transition.
func (r *Renderer) RenderStageChange(lead *entity.Lead, owner *entity.Owner, from, to entity.Stage) (entity.RenderedEmail, error) {
	if lead == nil {
		return entity.RenderedEmail{}, fmt.Errorf("render stage change: lead is required")
	}
	data := r.data(lead, owner, 0)
	data.FromStage = from.Label()
	data.ToStage = to.Label()
	return r.stageChange.execute(data)
}

func (r *Renderer) data(lead *entity.Lead, owner *entity.Owner, ordinal int) Data {
	d := Data{
		Lead:        lead,
		Owner:       owner,
		FirstName:   firstName(lead.Name),
		SenderName:  r.config.SenderName,
		CompanyName: r.config.CompanyName,
		Ordinal:     ordinal,
	}
	if owner != nil && owner.Name != "" {
		d.SenderName = owner.Name
	}
	if r.config.BaseURL != "" {
		d.LeadURL = r.config.BaseURL + "/leads/" + lead.ID
	}
	return d
}

func (t emailTemplate) execute(data Data) (entity.RenderedEmail, error) {
	var subject, html, text bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render html: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return entity.RenderedEmail{}, fmt.Errorf("render text: %w", err)
	}
	return entity.RenderedEmail{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

// pick clamps i into the list; past the end the last template repeats.
func pick(list []emailTemplate, i int) emailTemplate {
	if i < 0 {
		i = 0
	}
	if i >= len(list) {
		i = len(list) - 1
	}
	return list[i]
}

func parse(src templateSource) (emailTemplate, error) {
	subject, err := texttemplate.New(src.name + ".subject").Parse(src.subject)
	if err != nil {
		return emailTemplate{}, fmt.Errorf("parse %s subject: %w", src.name, err)
	}
	html, err := htmltemplate.New(src.name + ".html").Parse(src.html)
	if err != nil {
		return emailTemplate{}, fmt.Errorf("parse %s html: %w", src.name, err)
	}
	text, err := texttemplate.New(src.name + ".text").Parse(src.text)
	if err != nil {
		return emailTemplate{}, fmt.Errorf("parse %s text: %w", src.name, err)
	}
	return emailTemplate{subject: subject, html: html, text: text}, nil
}

func parseAll(srcs []templateSource) ([]emailTemplate, error) {
	out := make([]emailTemplate, 0, len(srcs))
	for _, src := range srcs {
		t, err := parse(src)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
