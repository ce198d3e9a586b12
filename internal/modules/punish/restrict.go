package punish

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"groupguard/internal/platform"
	"groupguard/internal/utils"
)

// RestrictionFlags lists the flag names accepted by /restrict, in display order.
var RestrictionFlags = []string{"text", "media", "polls", "other", "web", "info", "invite", "pin"}

type Restriction struct {
	Perms    platform.Permissions
	Duration time.Duration
	// Flags holds the bits named on the command line after +all/-all expansion.
	Flags map[string]bool
}

type InvalidFlagError struct {
	Token string
}

func (e *InvalidFlagError) Error() string {
	return fmt.Sprintf("unknown restriction %q, use +/- with one of: %s, all", e.Token, strings.Join(RestrictionFlags, ", "))
}

// ParseRestriction reads tokens like "+text -media 2h". Every bit not forced on by
// a flag stays off, so an empty argument list is a full mute.
func ParseRestriction(args []string) (Restriction, error) {
	result := Restriction{Flags: make(map[string]bool)}
	for _, token := range args {
		d, err := utils.ParseDurationToken(token)
		if err == nil {
			result.Duration = d
			continue
		}
		if errors.Is(err, utils.ErrDurationTooLong) {
			return Restriction{}, err
		}
		if len(token) < 2 || (token[0] != '+' && token[0] != '-') {
			return Restriction{}, &InvalidFlagError{Token: token}
		}
		value := token[0] == '+'
		name := strings.ToLower(token[1:])
		if name == "all" {
			for _, flag := range RestrictionFlags {
				result.Flags[flag] = value
			}
			continue
		}
		if !knownFlag(name) {
			return Restriction{}, &InvalidFlagError{Token: token}
		}
		result.Flags[name] = value
	}

	for name, value := range result.Flags {
		setFlag(&result.Perms, name, value)
	}
	return result, nil
}

func knownFlag(name string) bool {
	for _, flag := range RestrictionFlags {
		if flag == name {
			return true
		}
	}
	return false
}

func setFlag(perms *platform.Permissions, name string, value bool) {
	switch name {
	case "text":
		perms.SendMessages = value
	case "media":
		perms.SendMedia = value
	case "polls":
		perms.SendPolls = value
	case "other":
		perms.SendOther = value
	case "web":
		perms.WebPreviews = value
	case "info":
		perms.ChangeInfo = value
	case "invite":
		perms.InviteUsers = value
	case "pin":
		perms.PinMessages = value
	}
}

func permissionDetails(perms platform.Permissions) map[string]bool {
	return map[string]bool{
		"can_send_messages":         perms.SendMessages,
		"can_send_media_messages":   perms.SendMedia,
		"can_send_polls":            perms.SendPolls,
		"can_send_other_messages":   perms.SendOther,
		"can_add_web_page_previews": perms.WebPreviews,
		"can_change_info":           perms.ChangeInfo,
		"can_invite_users":          perms.InviteUsers,
		"can_pin_messages":          perms.PinMessages,
	}
}
