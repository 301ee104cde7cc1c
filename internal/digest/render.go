package digest

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"forumdigest/internal/domain"
)

var bodyTemplate = template.Must(template.New("digest").Parse(
	`<p>Here is a summary of the latest activity you are subscribed to in the forum:</p>
{{if .Topics}}<p><b>Topics</b></p>
<ul>
{{range .Topics}}<li><a href="{{.Permalink}}">{{.Title}}</a></li>
{{end}}</ul>
{{end}}{{if .Replies}}<p><b>Replies</b></p>
<ul>
{{range .Replies}}<li>{{.AuthorName}} replied to - <a href="{{.Permalink}}">{{.TopicTitle}}</a></li>
{{end}}</ul>
{{end}}`))

type topicLine struct {
	Title     string
	Permalink string
}

type replyLine struct {
	AuthorName string
	TopicTitle string
	Permalink  string
}

type bodyData struct {
	Topics  []topicLine
	Replies []replyLine
}

// renderBody resolves display data for every entry and renders the HTML
// body. Entries keep their mailbox order; an empty sequence omits its
// section, and a fully empty mailbox renders the intro line alone.
func (c *Cycle) renderBody(ctx context.Context, mailbox domain.Mailbox) (string, error) {
	var data bodyData

	for _, n := range mailbox.Topics {
		line, err := c.topicLine(ctx, n)
		if err != nil {
			return "", err
		}

		data.Topics = append(data.Topics, line)
	}

	for _, n := range mailbox.Replies {
		line, err := c.replyLine(ctx, n)
		if err != nil {
			return "", err
		}

		data.Replies = append(data.Replies, line)
	}

	var body strings.Builder
	if err := bodyTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return body.String(), nil
}

func (c *Cycle) topicLine(
	ctx context.Context,
	n domain.TopicNotification,
) (topicLine, error) {
	title, err := c.content.TopicTitle(ctx, n.TopicID)
	if err != nil {
		return topicLine{}, fmt.Errorf("look up topic title: %w", err)
	}

	permalink, err := c.content.TopicPermalink(ctx, n.TopicID)
	if err != nil {
		return topicLine{}, fmt.Errorf("look up topic permalink: %w", err)
	}

	return topicLine{Title: title, Permalink: permalink}, nil
}

func (c *Cycle) replyLine(
	ctx context.Context,
	n domain.ReplyNotification,
) (replyLine, error) {
	authorName, err := c.content.UserDisplayName(ctx, n.AuthorID)
	if err != nil {
		return replyLine{}, fmt.Errorf("look up reply author name: %w", err)
	}

	topicTitle, err := c.content.TopicTitle(ctx, n.TopicID)
	if err != nil {
		return replyLine{}, fmt.Errorf("look up topic title: %w", err)
	}

	permalink, err := c.content.ReplyPermalink(ctx, n.ReplyID)
	if err != nil {
		return replyLine{}, fmt.Errorf("look up reply permalink: %w", err)
	}

	return replyLine{
		AuthorName: authorName,
		TopicTitle: topicTitle,
		Permalink:  permalink,
	}, nil
}
