package gateway

import "fmt"

type discordUser struct {
	ID            string
	Username      string
	GlobalName    string
	Discriminator string
	Avatar        string
}

// displayName applies the fallback chain from §4.7: global_name, else
// username#discriminator when discriminator != "0", else username, else
// the literal "Discord User".
func displayName(u discordUser) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	if u.Username != "" && u.Discriminator != "" && u.Discriminator != "0" {
		return fmt.Sprintf("%s#%s", u.Username, u.Discriminator)
	}
	if u.Username != "" {
		return u.Username
	}
	return "Discord User"
}

// avatarURL builds the CDN avatar URL when both id and avatar hash are
// present, per §4.7.
func avatarURL(u discordUser) string {
	if u.ID == "" || u.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
}

// reactionAuthor extracts the acting user from a reaction payload,
// preferring member.user.* over the top-level user.* per §4.7's
// reaction-author-extraction rule.
func reactionAuthor(p reactionEventPayload) discordUser {
	if p.Member != nil && p.Member.User.ID != "" {
		m := p.Member.User
		return discordUser{ID: m.ID, Username: m.Username, GlobalName: m.GlobalName, Discriminator: m.Discriminator, Avatar: m.Avatar}
	}
	if p.User != nil {
		return discordUser{ID: p.User.ID, Username: p.User.Username, GlobalName: p.User.GlobalName, Discriminator: p.User.Discriminator, Avatar: p.User.Avatar}
	}
	return discordUser{ID: p.UserID}
}
