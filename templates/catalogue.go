package templates

import "outreach-service/internal/domain/entity"

const signatureHTML = `<p>Best regards,<br>{{.SenderName}}{{if .CompanyName}}<br>{{.CompanyName}}{{end}}</p>`

const signatureText = `
Best regards,
{{.SenderName}}{{if .CompanyName}}
{{.CompanyName}}{{end}}`

var leadIntro = templateSource{
	name:    "lead_intro",
	subject: `{{if .Lead.Company}}{{.Lead.Company}} x {{.CompanyName}}{{else}}Quick introduction{{end}}`,
	html: `<p>Hi {{.FirstName}},</p>
<p>Thanks for your interest. I'd love to learn more about what you are working on{{if .Lead.Company}} at {{.Lead.Company}}{{end}} and see whether we can help.</p>
<p>Would you have 20 minutes for a short call this week?</p>
` + signatureHTML,
	text: `Hi {{.FirstName}},

Thanks for your interest. I'd love to learn more about what you are working on{{if .Lead.Company}} at {{.Lead.Company}}{{end}} and see whether we can help.

Would you have 20 minutes for a short call this week?
` + signatureText,
}

// leadFollowUps are used for Lead stage sends after the intro, in order.
var leadFollowUps = []templateSource{
	{
		name:    "lead_followup_1",
		subject: `Following up`,
		html: `<p>Hi {{.FirstName}},</p>
<p>Just checking whether my last email reached you. Happy to share a few examples of how teams like yours use us.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

Just checking whether my last email reached you. Happy to share a few examples of how teams like yours use us.
` + signatureText,
	},
	{
		name:    "lead_followup_2",
		subject: `Any questions I can answer?`,
		html: `<p>Hi {{.FirstName}},</p>
<p>If timing is the issue, let me know when suits you better and I will follow up then.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

If timing is the issue, let me know when suits you better and I will follow up then.
` + signatureText,
	},
	{
		name:    "lead_followup_3",
		subject: `Worth a quick chat?`,
		html: `<p>Hi {{.FirstName}},</p>
<p>I don't want to crowd your inbox. A one-line reply is enough to tell me whether this is worth a conversation.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

I don't want to crowd your inbox. A one-line reply is enough to tell me whether this is worth a conversation.
` + signatureText,
	},
	{
		name:    "lead_followup_final",
		subject: `Closing the loop`,
		html: `<p>Hi {{.FirstName}},</p>
<p>I haven't heard back, so this is my last note for now. If anything changes, just reply to this email.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

I haven't heard back, so this is my last note for now. If anything changes, just reply to this email.
` + signatureText,
	},
}

var proposalFollowUps = []templateSource{
	{
		name:    "proposal_followup_1",
		subject: `Your proposal{{if .Lead.Company}} for {{.Lead.Company}}{{end}}`,
		html: `<p>Hi {{.FirstName}},</p>
<p>I wanted to make sure the proposal arrived and see whether you have any questions about it.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

I wanted to make sure the proposal arrived and see whether you have any questions about it.
` + signatureText,
	},
	{
		name:    "proposal_followup_2",
		subject: `Next steps on the proposal`,
		html: `<p>Hi {{.FirstName}},</p>
<p>Is there anything in the proposal you would like us to adjust? Happy to walk your team through it.</p>
` + signatureHTML,
		text: `Hi {{.FirstName}},

Is there anything in the proposal you would like us to adjust? Happy to walk your team through it.
` + signatureText,
	},
}

var ownerNotifications = map[entity.EmailType]templateSource{
	entity.EmailTypeQualifiedNotification: {
		name:    "qualified_notification",
		subject: `Qualified lead: {{.Lead.Name}}{{if .Lead.Company}} ({{.Lead.Company}}){{end}}`,
		html: `<p>{{.Lead.Name}} &lt;{{.Lead.Email}}&gt; is qualified and waiting for a proposal.</p>
{{if .LeadURL}}<p><a href="{{.LeadURL}}">Open lead</a></p>{{end}}`,
		text: `{{.Lead.Name}} <{{.Lead.Email}}> is qualified and waiting for a proposal.
{{if .LeadURL}}{{.LeadURL}}{{end}}`,
	},
	entity.EmailTypeNegotiationsNotification: {
		name:    "negotiations_notification",
		subject: `Negotiation in progress: {{.Lead.Name}}{{if .Lead.Company}} ({{.Lead.Company}}){{end}}`,
		html: `<p>{{.Lead.Name}} &lt;{{.Lead.Email}}&gt; is in negotiations. Check in on open points.</p>
{{if .LeadURL}}<p><a href="{{.LeadURL}}">Open lead</a></p>{{end}}`,
		text: `{{.Lead.Name}} <{{.Lead.Email}}> is in negotiations. Check in on open points.
{{if .LeadURL}}{{.LeadURL}}{{end}}`,
	},
}

var stageChangeAlert = templateSource{
	name:    "stage_change_alert",
	subject: `{{.Lead.Name}} moved to {{.ToStage}}`,
	html: `<p>{{.Lead.Name}} &lt;{{.Lead.Email}}&gt; moved from <strong>{{.FromStage}}</strong> to <strong>{{.ToStage}}</strong>.</p>
{{if .LeadURL}}<p><a href="{{.LeadURL}}">Open lead</a></p>{{end}}`,
	text: `{{.Lead.Name}} <{{.Lead.Email}}> moved from {{.FromStage}} to {{.ToStage}}.
{{if .LeadURL}}{{.LeadURL}}{{end}}`,
}
