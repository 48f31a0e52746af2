package domain

import "testing"

func TestNormalizeNetwork(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bep20 upper", raw: "BEP20", want: NetworkBEP20},
		{name: "bep20 lower", raw: "bep20", want: NetworkBEP20},
		{name: "erc20 with whitespace", raw: "  erc20 ", want: NetworkERC20},
		{name: "unknown network", raw: "TRC20", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeNetwork(tc.raw); got != tc.want {
				t.Fatalf("NormalizeNetwork(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestIsTerminalWithdrawalStatus(t *testing.T) {
	if IsTerminalWithdrawalStatus(WithdrawalStatusPending) {
		t.Fatal("pending must not be terminal")
	}
	if !IsTerminalWithdrawalStatus(WithdrawalStatusCompleted) {
		t.Fatal("completed must be terminal")
	}
	if !IsTerminalWithdrawalStatus(WithdrawalStatusRejected) {
		t.Fatal("rejected must be terminal")
	}
}
