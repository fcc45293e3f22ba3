package domain

// Partner is an accountability partner: another user whose habits can
// be viewed and copied. The partner list is owned by the stream client;
// nothing else mutates it.
type Partner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image,omitempty"`
	Email        string `json:"email"`
}

// ClonePartners copies a partner slice so the owner can hand out
// snapshots without aliasing its internal state.
func ClonePartners(list []Partner) []Partner {
	if list == nil {
		return nil
	}
	out := make([]Partner, len(list))
	copy(out, list)
	return out
}
