package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
	"github.com/ZenRasta/IbisExchange-sub000/internal/repositories"
	"github.com/ZenRasta/IbisExchange-sub000/internal/ton"
)

type WalletService struct {
	walletRepo *repositories.WalletRepo
	auditRepo  *repositories.AuditRepo
	cfg        *config.Config
	log        *zap.Logger
}

func NewWalletService(
	walletRepo *repositories.WalletRepo,
	auditRepo *repositories.AuditRepo,
	cfg *config.Config,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		cfg:        cfg,
		log:        log,
	}
}

// GeneratePayload creates a nonce for TON Proof. The client passes it to
// tonconnect when connecting a wallet.
func (s *WalletService) GeneratePayload(ctx context.Context, userID *uuid.UUID) (string, error) {
	ttl := 5 * time.Minute
	p, err := s.walletRepo.CreateProofPayload(ctx, userID, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to create proof payload: %w", err)
	}
	return p.Payload, nil
}

// ConnectWallet verifies a TON Proof and binds the wallet to the user.
// Escrow deposits and payouts only move through a proven wallet.
type ConnectWalletRequest struct {
	Address         string    `json:"address"`          // raw: "0:abc..."
	AddressFriendly string    `json:"address_friendly"` // "EQA..." / "UQA..."
	Network         string    `json:"network"`          // "mainnet" / "testnet"
	PublicKey       string    `json:"public_key"`       // hex
	Proof           ton.Proof `json:"proof"`
}

func (s *WalletService) ConnectWallet(ctx context.Context, userID uuid.UUID, req ConnectWalletRequest) (*models.UserWallet, error) {
	// 1. Consume payload (nonce) — replay protection
	_, err := s.walletRepo.ConsumeProofPayload(ctx, req.Proof.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired proof payload (nonce): %w", err)
	}

	// 2. Parse raw address
	workchain, addrHash, err := ton.ParseRawAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid TON address: %w", err)
	}

	// 3. Network check
	expectedNetwork := s.cfg.TONNetwork
	if req.Network != "" && req.Network != expectedNetwork {
		return nil, fmt.Errorf("network mismatch: expected %s, got %s", expectedNetwork, req.Network)
	}

	// 4. Verify the TON Proof signature
	err = ton.VerifyProof(req.PublicKey, addrHash, workchain, req.Proof, s.cfg.TONProofAllowedDomains)
	if err != nil {
		return nil, fmt.Errorf("TON Proof verification failed: %w", err)
	}

	// 5. Deactivate the user's previous wallets
	if err := s.walletRepo.DeactivateAllWallets(ctx, userID); err != nil {
		s.log.Warn("failed to deactivate old wallets", zap.Error(err))
	}

	// 6. Save the new wallet
	wallet := &models.UserWallet{
		UserID:          userID,
		Address:         req.Address,
		AddressFriendly: req.AddressFriendly,
		Network:         req.Network,
		PublicKey:       req.PublicKey,
		ProofPayload:    req.Proof.Payload,
		ProofSignature:  req.Proof.Signature,
		ProofTimestamp:  req.Proof.Timestamp,
		ProofDomain:     req.Proof.Domain.Value,
		Verified:        true,
		IsActive:        true,
	}

	if err := s.walletRepo.ConnectWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	// 7. Audit log
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "wallet_connected",
		EntityType:  "user_wallet",
		EntityID:    &wallet.ID,
		Meta:        map[string]any{"address": req.AddressFriendly, "network": req.Network},
	})

	s.log.Info("wallet connected",
		zap.String("user_id", userID.String()),
		zap.String("address", req.AddressFriendly),
	)

	return wallet, nil
}

// DisconnectWallet detaches the user's active wallet. Trades in flight keep
// the wallet address recorded at trade creation.
func (s *WalletService) DisconnectWallet(ctx context.Context, userID uuid.UUID) error {
	if err := s.walletRepo.DeactivateAllWallets(ctx, userID); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "wallet_disconnected",
		EntityType:  "user",
		EntityID:    &userID,
	})

	return nil
}

// GetActiveWallet returns the current active wallet.
func (s *WalletService) GetActiveWallet(ctx context.Context, userID uuid.UUID) (*models.UserWallet, error) {
	return s.walletRepo.GetActiveWallet(ctx, userID)
}
