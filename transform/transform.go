// Package transform renders the body of a relayed message for one destination.
//
// Rendering is a pure function of its inputs and runs in three steps: the
// body is cut to the beam's length limit, ((nickname)) tags are substituted
// for the destination, and the beam's anonymity prefix is applied.
package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/user"
)

var tagPattern = regexp.MustCompile(`\(\(([^()]*)\)\)`)

const (
	// DefaultMentionFormat renders a direct mention; the verb receives the account ID.
	DefaultMentionFormat = "<@!%d>"

	// DefaultEmphasisFormat renders a non-mentioning nickname; the verb receives the nickname.
	DefaultEmphasisFormat = "**__%s__**"
)

// Directory resolves tag nicknames to users.
type Directory interface {
	GetUserByNickname(ctx context.Context, nickname string) (*user.User, error)
}

// Config configures a Transformer. Zero fields take the package defaults.
type Config struct {
	MentionFormat  string
	EmphasisFormat string

	// MaxLength is the limit used for beams without their own.
	MaxLength int
}

// Input is everything one destination rendering depends on.
type Input struct {
	// Body is the source message text.
	Body string

	// Destination is the channel the text is rendered for.
	Destination string

	// Beam carries the length limit and anonymity policy.
	Beam *beam.Beam

	// Source is the originating wormhole; its logo labels guild prefixes. May be nil.
	Source *channel.Wormhole

	// Guild is the originating guild name.
	Guild string

	// Users are the resolved tag targets, usually from Lookup.
	Users []*user.User
}

// Transformer renders message bodies per destination.
type Transformer struct {
	mention   string
	emphasis  string
	maxLength int
}

// New creates a Transformer.
func New(cfg Config) *Transformer {
	t := &Transformer{
		mention:   cfg.MentionFormat,
		emphasis:  cfg.EmphasisFormat,
		maxLength: cfg.MaxLength,
	}
	if t.mention == "" {
		t.mention = DefaultMentionFormat
	}
	if t.emphasis == "" {
		t.emphasis = DefaultEmphasisFormat
	}
	if t.maxLength <= 0 {
		t.maxLength = beam.DefaultMaxLength
	}
	return t
}

// Limit returns the body length limit that applies to b.
func (t *Transformer) Limit(b *beam.Beam) int {
	if b != nil && b.MaxLength > 0 {
		return b.MaxLength
	}
	return t.maxLength
}

// Render produces the text delivered to in.Destination.
func (t *Transformer) Render(in Input) string {
	text := Truncate(in.Body, t.Limit(in.Beam))

	for _, u := range in.Users {
		if u == nil || u.HomeID == "" {
			continue
		}
		tag := "((" + u.Nickname + "))"
		var sub string
		if u.HomeID == in.Destination {
			sub = fmt.Sprintf(t.mention, u.AccountID)
		} else {
			sub = fmt.Sprintf(t.emphasis, u.Nickname)
		}
		text = strings.ReplaceAll(text, tag, sub)
	}

	return t.prefix(in) + text
}

func (t *Transformer) prefix(in Input) string {
	if in.Beam == nil || in.Beam.Anonymity != beam.AnonymityGuild {
		return ""
	}
	label := Sanitize(in.Guild)
	if in.Source != nil && in.Source.Logo != "" {
		label = in.Source.Logo
	}
	if label == "" {
		return ""
	}
	return "**" + label + "**: "
}

// Tags returns the nicknames marked with ((nickname)) in body, in order of
// first appearance and without duplicates.
func Tags(body string) []string {
	matches := tagPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// Lookup resolves the tags of body against dir. Tags that do not resolve, or
// resolve to a user without a home channel, are left out.
func Lookup(ctx context.Context, dir Directory, body string) []*user.User {
	var users []*user.User
	for _, nick := range Tags(body) {
		u, err := dir.GetUserByNickname(ctx, nick)
		if err != nil || u.HomeID == "" {
			continue
		}
		users = append(users, u)
	}
	return users
}

// Truncate cuts s to at most limit runes. A limit of 0 or less returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

var markdown = strings.NewReplacer(
	"@", "",
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
)

// Sanitize strips mention markers and escapes markdown in a display label.
func Sanitize(label string) string {
	return markdown.Replace(label)
}
