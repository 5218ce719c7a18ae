// Package mocks provides mock implementations for testing the auth core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockKV := mocks.NewMockKVRepository(ctrl)
//	mockKV.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
//
// Hand-written in-memory fakes with real TTL and atomicity semantics live in
// the auth subpackage; prefer those for flow-level tests and the generated
// mocks for pinning exact call sequences and failure injection.
package mocks

// Generate mocks for all port interfaces in one file.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/tinz/tinz-api/internal/ports KVRepository,UserRepository,SsoAccountRepository,MailSender,ProviderVerifier
