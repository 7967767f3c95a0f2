package ftsaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndAsKind(t *testing.T) {
	err := New(InvalidArgument, "setup_keysetup", "mismatched key sets")
	assert.True(t, AsKind(err, InvalidArgument))
	assert.False(t, AsKind(err, ThresholdNotMet))
	assert.Contains(t, err.Error(), "setup_keysetup")
	assert.Contains(t, err.Error(), "mismatched key sets")
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(AuthenticationFailure, "online_construct", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, AsKind(err, AuthenticationFailure))
}

func TestNotMetFormatsCounts(t *testing.T) {
	err := NotMet("setup_keysetup", 2, 3)
	assert.True(t, AsKind(err, ThresholdNotMet))
	assert.Contains(t, err.Error(), "have 2")
	assert.Contains(t, err.Error(), "need 3")
}

func TestAsKindRejectsForeignErrors(t *testing.T) {
	assert.False(t, AsKind(errors.New("plain error"), InvalidArgument))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "InvalidArgument", InvalidArgument.String())
	assert.Equal(t, "AuthenticationFailure", AuthenticationFailure.String())
	assert.Equal(t, "ThresholdNotMet", ThresholdNotMet.String())
	assert.Equal(t, "ProtocolMisuse", ProtocolMisuse.String())
}
