package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForwardOnly(t *testing.T) {
	cases := []struct {
		from, to RecordStatus
		ok       bool
	}{
		{StatusPending, StatusVerified, true},
		{StatusPending, StatusOnChain, true},
		{StatusVerified, StatusOnChain, true},
		{StatusOnChain, StatusVerified, false},
		{StatusOnChain, StatusPending, false},
		{StatusVerified, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusOnChain, StatusOnChain, false},
		{StatusPending, "revoked", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanAdvanceTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsOnChain(t *testing.T) {
	ref := "0xabc"
	empty := ""
	assert.True(t, (&StudentRecordModel{RecordStatus: StatusOnChain, RecordLedgerReference: &ref}).IsOnChain())
	assert.False(t, (&StudentRecordModel{RecordStatus: StatusOnChain, RecordLedgerReference: &empty}).IsOnChain())
	assert.False(t, (&StudentRecordModel{RecordStatus: StatusPending, RecordLedgerReference: &ref}).IsOnChain())
}
