// Package auth completes the Strava OAuth authorization-code exchange.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/lildude/stravastats/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Exchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type CredentialWriter interface {
	Upsert(ctx context.Context, athleteID int64, accessToken, refreshToken string, expiry any, scope string) (*model.Credential, error)
}

type authorized struct {
	AthleteID int64     `json:"athlete_id"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CallbackHandler exchanges the authorization code Strava redirects back with and
// stores the resulting credential for the athlete it belongs to.
func CallbackHandler(oauth Exchanger, creds CredentialWriter, timeout time.Duration, log logrus.FieldLogger) http.HandlerFunc {
	hc := &http.Client{Timeout: timeout}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorResponseBody{Code: "DENIED", Message: "authorization denied: " + e})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "code not found", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), oauth2.HTTPClient, hc)
		token, err := oauth.Exchange(ctx, code)
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil {
				err = &errs.UpstreamAuthError{Status: re.Response.StatusCode, Body: string(re.Body)}
			} else {
				err = &errs.UpstreamError{Op: "exchange code", Err: err}
			}
			middleware.WriteError(w, log, err)
			return
		}

		athlete, _ := token.Extra("athlete").(map[string]any)
		id, _ := athlete["id"].(float64)
		if id <= 0 {
			middleware.WriteError(w, log, &errs.MalformedPayloadError{Field: "athlete.id", Reason: "missing from token response"})
			return
		}

		var expiry any = token.Expiry
		if v := token.Extra("expires_at"); v != nil {
			expiry = v
		}
		scope := q.Get("scope")
		if s, ok := token.Extra("scope").(string); scope == "" && ok {
			scope = s
		}

		cred, err := creds.Upsert(r.Context(), int64(id), token.AccessToken, token.RefreshToken, expiry, scope)
		if err != nil {
			middleware.WriteError(w, log, err)
			return
		}

		log.WithFields(logrus.Fields{"athlete_id": cred.AthleteID, "username": athlete["username"]}).Info("successfully authenticated")
		middleware.WriteJSON(w, http.StatusOK, authorized{AthleteID: cred.AthleteID, Scope: cred.Scope, ExpiresAt: cred.ExpiresAt})
	}
}
