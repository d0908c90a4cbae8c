package services

import (
	"context"
	"errors"
	"fmt"

	"theo-challengers/codec"
	"theo-challengers/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProximityService is the in-person shortcut: the sender approves on their
// device and the receiver scans the resulting QR. No gossip travels this way.
type ProximityService struct {
	Challenges *ChallengeService
}

func NewProximityService(challenges *ChallengeService) *ProximityService {
	return &ProximityService{Challenges: challenges}
}

type ApprovalResult struct {
	Result
	QRData string `json:"qr_data,omitempty"`
	Link   string `json:"link,omitempty"`
}

// GenerateApproval marks a pending sent challenge accepted and returns its QR payload.
func (s *ProximityService) GenerateApproval(ctx context.Context, p *models.Player, challengeUUID string) (ApprovalResult, error) {
	sent, err := s.Challenges.findSent(ctx, p, challengeUUID)
	if code, isCode := asCode(err); isCode {
		return ApprovalResult{Result: fail(code)}, nil
	}
	if err != nil {
		return ApprovalResult{}, err
	}
	if sent.Status != models.SentChallengeStatusPending {
		return ApprovalResult{Result: fail(CodeAlreadyClaimed)}, nil
	}

	out, err := s.render(p, sent)
	if err != nil {
		return ApprovalResult{}, err
	}

	res := s.Challenges.DB.WithContext(ctx).Model(&models.SentChallenge{}).
		Where("id = ? AND status = ?", sent.ID, models.SentChallengeStatusPending).
		Update("status", models.SentChallengeStatusAccepted)
	if res.Error != nil {
		return ApprovalResult{}, fmt.Errorf("approve %s: %w", sent.UUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ApprovalResult{Result: fail(CodeAlreadyClaimed)}, nil
	}

	s.Challenges.Log.Info("🤝 challenge approved in person", zap.String("uuid", sent.UUID))
	return out, nil
}

// RegenerateApproval re-renders the QR for a challenge approved earlier.
func (s *ProximityService) RegenerateApproval(ctx context.Context, p *models.Player, challengeUUID string) (ApprovalResult, error) {
	sent, err := s.Challenges.findSent(ctx, p, challengeUUID)
	if code, isCode := asCode(err); isCode {
		return ApprovalResult{Result: fail(code)}, nil
	}
	if err != nil {
		return ApprovalResult{}, err
	}
	if sent.Status != models.SentChallengeStatusAccepted {
		return ApprovalResult{Result: fail(CodeChallengeNotFound)}, nil
	}
	return s.render(p, sent)
}

func (s *ProximityService) render(p *models.Player, sent *models.SentChallenge) (ApprovalResult, error) {
	approval := codec.Approval{UUID: sent.UUID, Approver: p.Nickname, Points: sent.Points}
	qr, err := codec.EncodeApproval(approval)
	if err != nil {
		return ApprovalResult{}, err
	}
	link, err := s.Challenges.Links.ApprovalLink(approval)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("generate approval link: %w", err)
	}
	return ApprovalResult{Result: ok(), QRData: qr, Link: link}, nil
}

type ScanResult struct {
	FinalizeResult
	Approver string `json:"approver,omitempty"`
}

// ProcessApproval completes the receiver's challenge from a scanned QR string
// or the payload of an approve link.
func (s *ProximityService) ProcessApproval(ctx context.Context, p *models.Player, raw string) (ScanResult, error) {
	approval, err := codec.DecodeApproval(raw)
	if err != nil {
		return ScanResult{FinalizeResult: FinalizeResult{Result: fail(decodeFailure(err))}}, nil
	}

	var c models.Challenge
	err = s.Challenges.DB.WithContext(ctx).Where("uuid = ?", approval.UUID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScanResult{FinalizeResult: FinalizeResult{Result: fail(CodeChallengeNotFound)}}, nil
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("load challenge %s: %w", approval.UUID, err)
	}
	if c.ReceiverID != p.ID {
		return ScanResult{FinalizeResult: FinalizeResult{Result: fail(CodeWrongAccount)}}, nil
	}
	if c.IsCompleted() {
		return ScanResult{FinalizeResult: FinalizeResult{Result: fail(CodeAlreadyAchievement)}}, nil
	}

	res, err := s.Challenges.complete(ctx, p, &c)
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{FinalizeResult: res, Approver: approval.Approver}, nil
}
