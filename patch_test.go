package gateAuth

import "testing"

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestMergeAppliesOnlySetFields(t *testing.T) {
	p := &Principal{ID: "u1", Username: "a@x.com", Email: "a@x.com", PhoneNumber: "1"}

	changed, renamed := Merge(p, UserPatch{EmailConfirmed: boolPtr(true)})
	if !changed || renamed {
		t.Fatalf("changed=%v renamed=%v", changed, renamed)
	}
	if !p.EmailConfirmed || p.PhoneNumber != "1" || p.Username != "a@x.com" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestMergeIgnoresBlankAndEqualUsername(t *testing.T) {
	p := &Principal{Username: "a@x.com"}

	for _, name := range []string{"", "   ", "a@x.com"} {
		changed, renamed := Merge(p, UserPatch{Username: strPtr(name)})
		if changed || renamed {
			t.Fatalf("username %q must not change anything", name)
		}
	}

	changed, renamed := Merge(p, UserPatch{Username: strPtr(" b@x.com ")})
	if !changed || !renamed || p.Username != "b@x.com" {
		t.Fatalf("expected trimmed rename, got %+v", p)
	}
}

func TestMergeIgnoresWhitespaceOnlyContactChanges(t *testing.T) {
	p := &Principal{Email: "a@x.com", PhoneNumber: "555"}

	changed, _ := Merge(p, UserPatch{Email: strPtr(" a@x.com "), PhoneNumber: strPtr("555\t")})
	if changed {
		t.Fatalf("padded values must not count as a change, got %+v", p)
	}

	changed, _ = Merge(p, UserPatch{Email: strPtr(" b@x.com ")})
	if !changed || p.Email != "b@x.com" || p.PhoneNumber != "555" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestMergeFalseIsAValue(t *testing.T) {
	p := &Principal{EmailConfirmed: true, PhoneNumberConfirmed: true}
	changed, _ := Merge(p, UserPatch{PhoneNumberConfirmed: boolPtr(false)})
	if !changed || p.PhoneNumberConfirmed || !p.EmailConfirmed {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestPatchEmpty(t *testing.T) {
	if !(UserPatch{}).Empty() {
		t.Fatal("zero patch must be empty")
	}
	if (UserPatch{Password: &PasswordChange{}}).Empty() {
		t.Fatal("password change is not empty")
	}
	if changed, _ := Merge(nil, UserPatch{Email: strPtr("x")}); changed {
		t.Fatal("nil principal cannot change")
	}
}
