package domain

import "testing"

func TestStatusLabels(t *testing.T) {
	cases := map[Status]string{
		StatusReceived:   "Принято",
		StatusAccepted:   "Принято к исполнению",
		StatusClarifying: "Уточнение",
		StatusDone:       "Выполнено",
	}
	for status, want := range cases {
		if got := status.Label(); got != want {
			t.Fatalf("%s: expected %q, got %q", status, want, got)
		}
		if !status.Valid() {
			t.Fatalf("%s should be valid", status)
		}
	}
	if Status("CLOSED").Valid() {
		t.Fatalf("unknown status reported valid")
	}
}

func TestRequestCloneIsDeep(t *testing.T) {
	req := &Request{
		ID:              1,
		AssignedAdminID: Int64Ptr(7),
		AdminMessages:   AdminMessageMap{7: 100, 8: 200},
		AdminMessageID:  IntPtr(100),
	}
	cp := req.Clone()
	*cp.AssignedAdminID = 9
	cp.AdminMessages[9] = 300
	*cp.AdminMessageID = 1

	if *req.AssignedAdminID != 7 || len(req.AdminMessages) != 2 || *req.AdminMessageID != 100 {
		t.Fatalf("clone shares state with original: %+v", req)
	}
}

func TestExcerptCountsRunes(t *testing.T) {
	req := &Request{Description: "Не работает принтер в кабинете"}
	if got := req.Excerpt(11); got != "Не работает" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if got := req.Excerpt(500); got != req.Description {
		t.Fatalf("short description should be returned whole")
	}
}

func TestRequestTypeRouting(t *testing.T) {
	if RequestTypeIT.AdminType() != AdminTypeIT || RequestTypeAHO.AdminType() != AdminTypeAHO {
		t.Fatalf("request type routes to wrong admin group")
	}
	if AdminTypeAHO.Role() != RoleAHOAdmin || AdminTypeIT.Role() != RoleITAdmin {
		t.Fatalf("admin type maps to wrong role")
	}
}
