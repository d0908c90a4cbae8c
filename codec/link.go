package codec

import (
	"fmt"
	"net/url"
	"strings"
)

type LinkParam string

const (
	ParamChallenge   LinkParam = "challenge"
	ParamVerifyClaim LinkParam = "verify_claim"
	ParamFinalize    LinkParam = "finalize"
	ParamProfileCard LinkParam = "profile_card"
	ParamApprove     LinkParam = "approve"
)

// recognized in this order when a URL carries more than one
var linkParams = []LinkParam{ParamChallenge, ParamVerifyClaim, ParamFinalize, ParamProfileCard, ParamApprove}

// ParamFor is the query parameter a payload travels under.
func ParamFor(p Payload) LinkParam {
	switch p.PayloadType() {
	case TypeChallengeRequest:
		return ParamChallenge
	case TypeClaim:
		return ParamVerifyClaim
	default:
		return ParamFinalize
	}
}

type Link struct {
	Param LinkParam
	Token string
}

// ExtractFromLink finds the first recognized parameter in rawURL. A malformed
// URL or one with no recognized parameter is simply not recognized.
func ExtractFromLink(rawURL string) (Link, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Link{}, false
	}
	q := u.Query()
	for _, p := range linkParams {
		if v := q.Get(string(p)); v != "" {
			return Link{Param: p, Token: v}, true
		}
	}
	return Link{}, false
}

// BuildShareLink sets param=token on base, keeping whatever else base carries.
func BuildShareLink(base string, param LinkParam, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("codec: share base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("codec: share base %q is not absolute", base)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set(string(param), token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Linker turns payloads into share links under a fixed base.
type Linker struct {
	Base       string
	Generation Generation
}

func (l Linker) Link(p Payload) (string, error) {
	token, err := EncodePayload(p, l.Generation)
	if err != nil {
		return "", err
	}
	return BuildShareLink(l.Base, ParamFor(p), token)
}

func (l Linker) ApprovalLink(a Approval) (string, error) {
	token, err := a.token()
	if err != nil {
		return "", err
	}
	return BuildShareLink(l.Base, ParamApprove, token)
}

func (l Linker) ProfileCardLink(card ProfileCard) (string, error) {
	token, err := EncodeProfileCard(card)
	if err != nil {
		return "", err
	}
	return BuildShareLink(l.Base, ParamProfileCard, token)
}
