package audit

import "testing"

func TestParseRoute(t *testing.T) {
	tests := []struct {
		method, template string
		want             ActionResource
	}{
		{"GET", "/api/admin/audit", ActionResource{"list", "audit"}},
		{"GET", "/api/bookings/{id}", ActionResource{"get", "booking"}},
		{"GET", "/api/bookings", ActionResource{"list", "booking"}},
		{"POST", "/api/bookings", ActionResource{"create", "booking"}},
		{"DELETE", "/api/parts/{id}", ActionResource{"delete", "part"}},
		{"PATCH", "/api/invoices/{id}", ActionResource{"update", "invoice"}},
		{"PUT", "/api/admin/users/{id}/admin", ActionResource{"admin_flag_changed", "user"}},
		{"POST", "/api/admin/sessions/sweep", ActionResource{"sweep", "session"}},
		{"POST", "/api/auth/logout", ActionResource{"logout", "session"}},
		{"GET", "/api", ActionResource{"list", "unknown"}},
		{"OPTIONS", "/api/parts", ActionResource{"options", "part"}},
	}
	for _, tt := range tests {
		if got := ParseRoute(tt.method, tt.template); got != tt.want {
			t.Errorf("ParseRoute(%s %s) = %+v, want %+v", tt.method, tt.template, got, tt.want)
		}
	}
}
