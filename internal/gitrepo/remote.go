package gitrepo

import (
	"net/url"

	"lfspull/internal/errors"
)

// NormalizeRemote maps a configured remote to the https base URL used
// for lfs calls. https remotes are a fixed point; ssh remotes are
// rewritten to https keeping host and path only, since token auth
// replaces the ssh identity. Anything else is rejected.
func NormalizeRemote(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(errors.UrlParsing, "could not parse remote url: "+raw, err)
	}

	switch parsed.Scheme {
	case "https":
		return raw, nil
	case "ssh":
		host := parsed.Hostname()
		if host == "" {
			return "", errors.New(errors.InvalidFormat, "url had no valid host: "+raw)
		}
		return "https://" + host + parsed.Path, nil
	default:
		return "", errors.New(errors.InvalidFormat, "url is neither https nor ssh: "+raw)
	}
}
