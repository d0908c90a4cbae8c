package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"theo-challengers/codec"
	"theo-challengers/models"
)

// Dispatcher routes links and scanned strings to the right protocol step.
// Protocol steps run one at a time so a commit and its rollback never interleave
// with another request.
type Dispatcher struct {
	mu         sync.Mutex
	Challenges *ChallengeService
	Proximity  *ProximityService
}

func NewDispatcher(challenges *ChallengeService, proximity *ProximityService) *Dispatcher {
	return &Dispatcher{Challenges: challenges, Proximity: proximity}
}

// ChallengePreview is what the receiver sees before accepting.
type ChallengePreview struct {
	UUID        string     `json:"uuid"`
	From        string     `json:"from"`
	FromScore   *int       `json:"from_score,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Message     string     `json:"message"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
}

func previewOf(req *codec.ChallengeRequest, now time.Time) *ChallengePreview {
	return &ChallengePreview{
		UUID:        req.ID,
		From:        req.From,
		FromScore:   req.FromScore,
		Title:       req.Item.Title,
		Description: req.Item.Description,
		Points:      req.Item.Points,
		Message:     req.Message,
		ExpiresAt:   req.ExpiresAt,
		Expired:     req.ExpiresAt != nil && !req.ExpiresAt.After(now),
	}
}

// OpenResult is the outcome of opening any link. Data depends on Kind.
type OpenResult struct {
	Kind codec.LinkParam `json:"kind,omitempty"`
	Result
	Data any `json:"data,omitempty"`
}

// Open handles a share link, a bare "TA:" string, or nothing recognizable.
// A challenge link is only previewed; accepting is a separate step.
func (d *Dispatcher) Open(ctx context.Context, p *models.Player, input string) (OpenResult, error) {
	input = strings.TrimSpace(input)
	if codec.IsProximity(input) {
		return d.scan(ctx, p, input)
	}

	link, found := codec.ExtractFromLink(input)
	if !found {
		return OpenResult{Result: fail(CodeNotRecognized)}, nil
	}

	switch link.Param {
	case codec.ParamProfileCard:
		card, err := codec.DecodeProfileCard(link.Token)
		if err != nil {
			return OpenResult{Kind: link.Param, Result: fail(decodeFailure(err))}, nil
		}
		return OpenResult{Kind: link.Param, Result: ok(), Data: card}, nil

	case codec.ParamApprove:
		res, err := d.scan(ctx, p, link.Token)
		res.Kind = link.Param
		return res, err
	}

	payload, code := decodeInput(link.Token, link.Param)
	if code != "" {
		return OpenResult{Kind: link.Param, Result: fail(code)}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch v := payload.(type) {
	case *codec.ChallengeRequest:
		res, err := d.Challenges.ProcessIncomingChallenge(ctx, p, v)
		if err != nil || !res.Success {
			return OpenResult{Kind: link.Param, Result: res.Result}, err
		}
		return OpenResult{Kind: link.Param, Result: ok(), Data: previewOf(v, d.Challenges.Now())}, nil

	case *codec.Claim:
		res, err := d.Challenges.ProcessClaim(ctx, p, v)
		return OpenResult{Kind: link.Param, Result: res.Result, Data: res}, err

	case *codec.Auth:
		res, err := d.Challenges.FinalizeChallenge(ctx, p, v)
		return OpenResult{Kind: link.Param, Result: res.Result, Data: res}, err
	}
	return OpenResult{Kind: link.Param, Result: fail(CodeInvalidCode)}, nil
}

func (d *Dispatcher) scan(ctx context.Context, p *models.Player, raw string) (OpenResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.Proximity.ProcessApproval(ctx, p, raw)
	return OpenResult{Kind: codec.ParamApprove, Result: res.Result, Data: res}, err
}

// Accept takes the same challenge link the preview came from.
func (d *Dispatcher) Accept(ctx context.Context, p *models.Player, input string) (AcceptResult, error) {
	payload, code := decodeInput(input, codec.ParamChallenge)
	if code != "" {
		return AcceptResult{Result: fail(code)}, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Challenges.AcceptChallenge(ctx, p, payload.(*codec.ChallengeRequest))
}

func (d *Dispatcher) Share(ctx context.Context, p *models.Player, itemID, message, expiryKey string) (ShareResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Challenges.ShareChallenge(ctx, p, itemID, message, expiryKey)
}

func (d *Dispatcher) VerifyClaim(ctx context.Context, p *models.Player, input string) (VerifyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Challenges.VerifyClaim(ctx, p, input)
}

func (d *Dispatcher) Approve(ctx context.Context, p *models.Player, challengeUUID string) (ApprovalResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Proximity.GenerateApproval(ctx, p, challengeUUID)
}

func (d *Dispatcher) Scan(ctx context.Context, p *models.Player, raw string) (ScanResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Proximity.ProcessApproval(ctx, p, raw)
}
