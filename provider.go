package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxProviderResponse bounds how much of a provider reply is read.
const maxProviderResponse = 4 << 20

// PistonProvider talks to a Piston-compatible execution API.
type PistonProvider struct {
	baseURL string
	client  *http.Client
}

// Editor identifiers that Piston spells differently.
var pistonAliases = map[string]string{
	string(LangCpp): "c++",
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
}

type pistonStage struct {
	Output string `json:"output"`
	Code   *int   `json:"code"`
}

type pistonResponse struct {
	Run     *pistonStage `json:"run"`
	Compile *pistonStage `json:"compile"`
	Message string       `json:"message"`
}

func NewPistonProvider(baseURL string) *PistonProvider {
	return &PistonProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (p *PistonProvider) Execute(ctx context.Context, language, version, code string) (string, error) {
	if alias, ok := pistonAliases[language]; ok {
		language = alias
	}
	if version == "" {
		version = "*"
	}

	body, err := json.Marshal(pistonRequest{
		Language: language,
		Version:  version,
		Files:    []pistonFile{{Content: code}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", execErr(ExecProviderFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", execErr(ExecTimeout, ctx.Err())
		}
		return "", execErr(ExecProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		if ctx.Err() != nil {
			return "", execErr(ExecTimeout, ctx.Err())
		}
		return "", execErr(ExecProviderFailure, err)
	}

	var out pistonResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", execErr(ExecProviderFailure, fmt.Errorf("provider status %d: %s", resp.StatusCode, msg))
	}
	if decodeErr != nil {
		return "", execErr(ExecMalformedResponse, decodeErr)
	}
	// A failed compile step may leave run out entirely; the compiler's
	// diagnostics are the output users want to see.
	if out.Compile != nil && out.Compile.Code != nil && *out.Compile.Code != 0 {
		return out.Compile.Output, nil
	}
	if out.Run == nil {
		return "", execErr(ExecMalformedResponse, errors.New("response has no run stage"))
	}
	return out.Run.Output, nil
}
