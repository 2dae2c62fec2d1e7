package lots

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

func TestAttachAndOpenCertificate(t *testing.T) {
	env := newTestEnv(t, WithBlobStore(newBlobStore(t)))
	ctx := context.Background()
	created := mustRegister(t, env.svc, farmerAna)

	cert, err := env.svc.AttachCertificate(ctx, farmerAna, AttachCertificateInput{
		LotID:       created.ID,
		Name:        "organic.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.7 organic"),
	})
	if err != nil {
		t.Fatalf("AttachCertificate() error = %v", err)
	}
	if cert.Key != "certificates/"+created.ID+"/organic.pdf" || cert.Size != int64(len("%PDF-1.7 organic")) {
		t.Fatalf("cert = %+v", cert)
	}

	stored, err := env.svc.GetLot(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetLot() error = %v", err)
	}
	if len(stored.Certificates) != 1 || len(stored.History) != 1 {
		t.Fatalf("stored = %+v", stored)
	}

	content, err := env.svc.OpenCertificate(ctx, created.ID, "organic.pdf")
	if err != nil {
		t.Fatalf("OpenCertificate() error = %v", err)
	}
	if content.Body == nil || content.URL != "" {
		t.Fatalf("content = %+v", content)
	}
	defer content.Body.Close()
	body, err := io.ReadAll(content.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "%PDF-1.7 organic" {
		t.Fatalf("body = %q", body)
	}

	if _, err := env.svc.OpenCertificate(ctx, created.ID, "missing.pdf"); !errors.Is(err, ports.ErrBlobNotFound) {
		t.Fatalf("OpenCertificate(missing) error = %v", err)
	}
}

func TestAttachCertificateRejections(t *testing.T) {
	env := newTestEnv(t, WithBlobStore(newBlobStore(t)))
	ctx := context.Background()
	created := mustRegister(t, env.svc, farmerAna)

	attach := func(actor ports.Actor, name string) error {
		_, err := env.svc.AttachCertificate(ctx, actor, AttachCertificateInput{
			LotID: created.ID,
			Name:  name,
			Body:  strings.NewReader("doc"),
		})
		return err
	}

	if err := attach(farmerAna, "gap.pdf"); err != nil {
		t.Fatalf("AttachCertificate() error = %v", err)
	}
	if err := attach(farmerAna, "gap.pdf"); !errors.Is(err, ErrCertificateExists) {
		t.Fatalf("duplicate error = %v, want ErrCertificateExists", err)
	}
	if err := attach(farmerBo, "other.pdf"); !errors.Is(err, lot.ErrUnauthorizedRole) {
		t.Fatalf("other farmer error = %v, want ErrUnauthorizedRole", err)
	}
	if err := attach(distributor, "other.pdf"); !errors.Is(err, lot.ErrUnauthorizedRole) {
		t.Fatalf("distributor error = %v, want ErrUnauthorizedRole", err)
	}
	if err := attach(farmerAna, "../escape.pdf"); !errors.Is(err, lot.ErrValidation) {
		t.Fatalf("path name error = %v, want ErrValidation", err)
	}
	if err := attach(admin, "audit.pdf"); err != nil {
		t.Fatalf("admin attach error = %v", err)
	}
}

func TestAttachCertificateWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	created := mustRegister(t, env.svc, farmerAna)

	_, err := env.svc.AttachCertificate(context.Background(), farmerAna, AttachCertificateInput{
		LotID: created.ID,
		Name:  "gap.pdf",
		Body:  strings.NewReader("doc"),
	})
	if err == nil {
		t.Fatal("AttachCertificate() error = nil, want missing store error")
	}
}

type stubGenerator struct {
	code   string
	err    error
	prompt ports.ContractPrompt
}

func (g *stubGenerator) Generate(_ context.Context, prompt ports.ContractPrompt) (ports.ContractDraft, error) {
	g.prompt = prompt
	if g.err != nil {
		return ports.ContractDraft{}, g.err
	}
	return ports.ContractDraft{SmartContractCode: g.code}, nil
}

func (g *stubGenerator) Name() string { return "stub" }

func TestGenerateContract(t *testing.T) {
	generator := &stubGenerator{code: "pragma solidity ^0.8.20;"}
	env := newTestEnv(t, WithGenerator(generator))
	ctx := context.Background()
	input := GenerateContractInput{
		ProduceDetails:       " Organic Fuji apples, 500 crates ",
		TrackingRequirements: "temperature log per hop",
	}

	draft, err := env.svc.GenerateContract(ctx, admin, input)
	if err != nil {
		t.Fatalf("GenerateContract() error = %v", err)
	}
	if draft.SmartContractCode != generator.code {
		t.Fatalf("draft = %+v", draft)
	}
	if generator.prompt.ProduceDetails != "Organic Fuji apples, 500 crates" {
		t.Fatalf("prompt = %+v", generator.prompt)
	}

	if _, err := env.svc.GenerateContract(ctx, farmerAna, input); !errors.Is(err, lot.ErrUnauthorizedRole) {
		t.Fatalf("GenerateContract(farmer) error = %v", err)
	}

	_, err = env.svc.GenerateContract(ctx, admin, GenerateContractInput{ProduceDetails: "  "})
	var verr *lot.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("GenerateContract(empty) error = %v", err)
	}

	upstream := errors.New("model overloaded")
	generator.err = upstream
	if _, err := env.svc.GenerateContract(ctx, admin, input); !errors.Is(err, upstream) {
		t.Fatalf("GenerateContract(upstream) error = %v", err)
	}
}

func TestGenerateContractDisabled(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GenerateContract(context.Background(), admin, GenerateContractInput{
		ProduceDetails:       "pears",
		TrackingRequirements: "origin",
	})
	if !errors.Is(err, ErrGeneratorDisabled) {
		t.Fatalf("GenerateContract() error = %v, want ErrGeneratorDisabled", err)
	}
}
