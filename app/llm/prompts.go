package llm

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/amplifier/app/models"
)

const decideInstruction = `You decide how a social account engages with one post.
Answer with a single JSON object and nothing else:
{"action": "like|repost|reply|follow|quote|none", "rationale": "...", "draft_text": "..."}
draft_text is required for reply and quote and must be under 280 characters.`

const replyInstruction = `You reply to someone who mentioned or replied to the account.
Answer with the reply text only, under 280 characters. Answer with an empty
string if no reply is appropriate.`

const postInstruction = `You write one original post for the account based on what is trending.
Answer with the post text only, under 280 characters.`

func decisionPrompt(dc models.DecisionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Author: @%s (%d followers)\n", dc.Item.AuthorHandle, dc.Item.AuthorFollowers)
	fmt.Fprintf(&b, "Likes: %d, reposts: %d, replies: %d, bookmarks: %d\n",
		dc.Item.Counters.Likes, dc.Item.Counters.Reposts, dc.Item.Counters.Replies, dc.Item.Counters.Bookmarks)
	fmt.Fprintf(&b, "Score: %.2f, velocity: %.2f\n", dc.Score, dc.Velocity)
	fmt.Fprintf(&b, "Post:\n%s\n", dc.Item.Text)
	if dc.Preview != "" {
		fmt.Fprintf(&b, "Linked article:\n%s\n", dc.Preview)
	}
	return b.String()
}

func replyPrompt(rc models.ReplyContext) string {
	var b strings.Builder
	n := rc.Notification
	fmt.Fprintf(&b, "From: @%s\n", n.AuthorHandle)
	if n.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", n.Title)
	}
	fmt.Fprintf(&b, "Message:\n%s\n", n.Text)
	if rc.Thread != nil {
		fmt.Fprintf(&b, "Thread by @%s:\n%s\n", rc.Thread.AuthorHandle, rc.Thread.Text)
	}
	return b.String()
}

func postPrompt(pc models.PostContext) string {
	var b strings.Builder
	if len(pc.Trending) > 0 {
		b.WriteString("Trending posts:\n")
		for _, item := range pc.Trending {
			fmt.Fprintf(&b, "- @%s: %s\n", item.AuthorHandle, item.Text)
		}
	}
	if len(pc.Headlines) > 0 {
		b.WriteString("Headlines:\n")
		for _, h := range pc.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}
