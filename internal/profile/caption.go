package profile

import (
	"fmt"
	"strings"
)

// MatchCaption is the summary shown to other users. Age is hidden when the
// owner opted out.
func MatchCaption(p Profile) string {
	return caption(p, p.AgeVisible)
}

// OwnCaption is the summary shown to the owner, with age and contact.
func OwnCaption(p Profile) string {
	c := caption(p, true)
	if p.Handle != "" {
		c += "\n" + ContactLine(p)
	}
	return c
}

// ContactLine renders the handle with its platform label.
func ContactLine(p Profile) string {
	return fmt.Sprintf("🔗 Username: %s (%s)", p.Handle, p.ContactLabel())
}

func caption(p Profile, withAge bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 Name: %s\n🚻 Gender: %s", p.Name, p.Gender.Label())
	if withAge {
		fmt.Fprintf(&b, "\n🎂 Age: %d", p.Age)
	}
	fmt.Fprintf(&b, "\n📍 Location: %s\n🏷️ Hobbies: %s\n💡 Bio: %s",
		p.Location, strings.Join(p.Hobbies, ", "), p.Bio)
	return b.String()
}
