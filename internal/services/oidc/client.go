package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/practice-queue/internal/models"
	"golang.org/x/oauth2"
)

// Client runs the authorization code flow with PKCE against one provider
type Client struct {
	config *oauth2.Config
}

// LoginRequest is what the caller must remember between redirect and callback
type LoginRequest struct {
	URL      string
	State    string
	Verifier string
}

// NewClient creates an authorization code client. Public clients send no secret.
func NewClient(cfg *models.OIDCConfig, endpoints Endpoints) *Client {
	var secret string
	if !cfg.IsPublicClient() {
		secret = *cfg.ClientSecret
	}

	return &Client{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: secret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       strings.Fields(DefaultScope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.Authorization,
			TokenURL: endpoints.Token,
		},
	}}
}

// Login builds the authorization URL for state with a fresh S256 code challenge
func (c *Client) Login(state string) LoginRequest {
	verifier := oauth2.GenerateVerifier()
	return LoginRequest{
		URL:      c.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:    state,
		Verifier: verifier,
	}
}

// Exchange trades an authorization code for tokens and returns the ID token
func (c *Client) Exchange(ctx context.Context, code, verifier string) (string, error) {
	token, err := c.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", fmt.Errorf("token response has no id_token")
	}
	return idToken, nil
}
