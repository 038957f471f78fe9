package domain

// IntPtr is a small helper for optional chapter filters.
func IntPtr(v int) *int { return &v }

// Matches reports whether p satisfies every condition in f.
func (f Filter) Matches(p Payload) bool {
	if p.Class != f.Class || p.Subject != f.Subject {
		return false
	}
	if f.ContentType != "" && p.ContentType != f.ContentType {
		return false
	}
	if f.Chapter != nil && p.Chapter != *f.Chapter {
		return false
	}
	return true
}

// Validate checks the payload invariants shared by every point.
func (p Payload) Validate() error {
	switch {
	case p.Subject == "":
		return errMissing("subject")
	case p.ContentType != ContentPageText && p.ContentType != ContentPageImage:
		return errMissing("content_type")
	case p.Chapter < 0:
		return errNegative("chapter")
	case p.PageNumber < 0:
		return errNegative("page_number")
	}
	return nil
}

type payloadError string

func (e payloadError) Error() string { return string(e) }

func errMissing(field string) error  { return payloadError("payload: missing " + field) }
func errNegative(field string) error { return payloadError("payload: negative " + field) }
