package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
)

func Test_enrollmentApi_enroll(t *testing.T) {
	app := setup(t)

	student := createUser(t, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)

	crs := createCourse(t, "Calculus I", "Mathematics", teacher.ID, 15000)

	tests := []httpTest{
		{
			name: "no token", method: http.MethodPost, path: "/v1/enrollments",
			body:     marchallObj(t, echoapi.EnrollRequest{CourseID: crs.ID}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "non-student forbidden", method: http.MethodPost, path: "/v1/enrollments",
			body: marchallObj(t, echoapi.EnrollRequest{CourseID: crs.ID}), token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "missing course_id", method: http.MethodPost, path: "/v1/enrollments",
			body: marchallObj(t, echoapi.EnrollRequest{}), token: studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "this field is required"}),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/enrollments",
			body: marchallObj(t, echoapi.EnrollRequest{CourseID: "404"}), token: studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "course not found"}),
		},
		{
			name: "enroll ok", method: http.MethodPost, path: "/v1/enrollments",
			body: marchallObj(t, echoapi.EnrollRequest{CourseID: crs.ID}), token: studentToken,
			wantCode: http.StatusCreated,
		},
		{
			name: "already enrolled", method: http.MethodPost, path: "/v1/enrollments",
			body: marchallObj(t, echoapi.EnrollRequest{CourseID: crs.ID}), token: studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: enrollment.ErrAlreadyEnrolled.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "enroll ok" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var enr enrollment.Enrollment
				if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if enr.StudentID != student.ID {
					t.Errorf("StudentID = %v; want %v", enr.StudentID, student.ID)
				}
				if enr.CourseID != crs.ID {
					t.Errorf("CourseID = %v; want %v", enr.CourseID, crs.ID)
				}
				if enr.Amount != crs.Price {
					t.Errorf("Amount = %v; want course price %v", enr.Amount, crs.Price)
				}
				if enr.PaymentStatus != enrollment.PaymentStatusPending {
					t.Errorf("PaymentStatus = %v; want %v", enr.PaymentStatus, enrollment.PaymentStatusPending)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_enrollmentApi_queryOwn(t *testing.T) {
	app := setup(t)

	student := createUser(t, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	other := createUser(t, "Other", "other", "other@test.cd", "", user.StudentRoles, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	crs := createCourse(t, "Physics I", "Physics", teacher.ID, 20000)

	createEnrollment(t, student.ID, crs.ID, crs.Price)
	createEnrollment(t, other.ID, crs.ID, crs.Price)

	req, rec := newAuthRequest(http.MethodGet, "/v1/enrollments", getToken(t, student))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var enrs []enrollment.Enrollment
	if err := json.Unmarshal(rec.Body.Bytes(), &enrs); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if len(enrs) != 1 {
		t.Fatalf("len(enrs) = %v; want 1 (own enrollments only)", len(enrs))
	}
	if enrs[0].StudentID != student.ID {
		t.Errorf("StudentID = %v; want %v", enrs[0].StudentID, student.ID)
	}
}

func Test_enrollmentApi_setPaymentStatus(t *testing.T) {
	app := setup(t)
	emailsvc.SentMessages = emailsvc.SentMessages[:0]

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	student := createUser(t, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	crs := createCourse(t, "Chemistry I", "Chemistry", teacher.ID, 25000)
	enr := createEnrollment(t, student.ID, crs.ID, crs.Price)
	path := "/v1/admin/enrollments/" + enr.ID + "/payment-status"

	errTests := []httpTest{
		{
			name: "no token", method: http.MethodPatch, path: path,
			body:     marchallObj(t, echoapi.PaymentStatusRequest{Status: enrollment.PaymentStatusPaid}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "non-admin forbidden", method: http.MethodPatch, path: path,
			body: marchallObj(t, echoapi.PaymentStatusRequest{Status: enrollment.PaymentStatusPaid}), token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown enrollment", method: http.MethodPatch, path: "/v1/admin/enrollments/404/payment-status",
			body: marchallObj(t, echoapi.PaymentStatusRequest{Status: enrollment.PaymentStatusPaid}), token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "invalid status", method: http.MethodPatch, path: path,
			body: marchallObj(t, echoapi.PaymentStatusRequest{Status: "LOL"}), token: adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "must be one of [PENDING PAID LATER]"}),
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	patchStatus := func(t *testing.T, status enrollment.PaymentStatus) (int, enrollment.Enrollment) {
		t.Helper()
		req, rec := newAuthRequest(
			http.MethodPatch, path, adminToken,
			marchallObj(t, echoapi.PaymentStatusRequest{Status: status}),
		)
		app.ServeHTTP(rec, req)
		var got enrollment.Enrollment
		if rec.Code == http.StatusOK {
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("json.Unmarshal() failed: %v", err)
			}
		}
		return rec.Code, got
	}

	t.Run("pending to later", func(t *testing.T) {
		code, got := patchStatus(t, enrollment.PaymentStatusLater)
		if code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", code, http.StatusOK)
		}
		if got.PaymentStatus != enrollment.PaymentStatusLater {
			t.Errorf("PaymentStatus = %v; want %v", got.PaymentStatus, enrollment.PaymentStatusLater)
		}
		if !got.VerifiedAt.IsZero() {
			t.Error("VerifiedAt must not be set on LATER")
		}
		if got.Receipt != nil {
			t.Error("Receipt must not be issued on LATER")
		}
	})

	t.Run("later to paid issues receipt", func(t *testing.T) {
		code, got := patchStatus(t, enrollment.PaymentStatusPaid)
		if code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", code, http.StatusOK)
		}
		if got.PaymentStatus != enrollment.PaymentStatusPaid {
			t.Errorf("PaymentStatus = %v; want %v", got.PaymentStatus, enrollment.PaymentStatusPaid)
		}
		if got.VerifiedAt.IsZero() {
			t.Error("VerifiedAt must be set on PAID")
		}
		if got.Receipt == nil {
			t.Fatal("Receipt must be issued on PAID")
		}
		if got.Receipt.Number == "" || got.Receipt.IssuedAt.IsZero() {
			t.Errorf("incomplete receipt: %+v", got.Receipt)
		}
		if artifacts.Len() != 1 {
			t.Errorf("artifacts.Len() = %v; want 1", artifacts.Len())
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("len(SentMessages) = %v; want 1 receipt email", len(emailsvc.SentMessages))
		}
	})

	t.Run("paid to paid is idempotent", func(t *testing.T) {
		before, err := enrRepo.GetEnrollment(context.Background(), enrollment.GetFilter{ID: enr.ID})
		if err != nil {
			t.Fatalf("GetEnrollment() failed: %v", err)
		}

		code, got := patchStatus(t, enrollment.PaymentStatusPaid)
		if code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", code, http.StatusOK)
		}
		if got.Receipt == nil || got.Receipt.Number != before.Receipt.Number {
			t.Errorf("Receipt changed on re-verification; got %+v, want %+v", got.Receipt, before.Receipt)
		}
		if !got.VerifiedAt.Equal(before.VerifiedAt) {
			t.Errorf("VerifiedAt changed on re-verification; got %v, want %v", got.VerifiedAt, before.VerifiedAt)
		}
		if artifacts.Len() != 1 {
			t.Errorf("artifacts.Len() = %v; want 1 (no re-render)", artifacts.Len())
		}
	})

	t.Run("paid is terminal", func(t *testing.T) {
		code, _ := patchStatus(t, enrollment.PaymentStatusPending)
		if code != http.StatusBadRequest {
			t.Fatalf("failed! code = %v; wantCode %v", code, http.StatusBadRequest)
		}
		refreshed, err := enrRepo.GetEnrollment(context.Background(), enrollment.GetFilter{ID: enr.ID})
		if err != nil {
			t.Fatalf("GetEnrollment() failed: %v", err)
		}
		if refreshed.PaymentStatus != enrollment.PaymentStatusPaid {
			t.Errorf("PaymentStatus = %v; PAID must not regress", refreshed.PaymentStatus)
		}
	})
}

func Test_enrollmentApi_issueReceipt(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	student := createUser(t, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	adminToken := getToken(t, admin)

	crs := createCourse(t, "Biology I", "Biology", teacher.ID, 30000)
	enr := createEnrollment(t, student.ID, crs.ID, crs.Price)
	path := "/v1/admin/enrollments/" + enr.ID + "/receipt"

	t.Run("not paid", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, adminToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: enrollment.ErrNotPaid.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})

	// verify payment; the receipt comes with it
	req, rec := newAuthRequest(
		http.MethodPatch, "/v1/admin/enrollments/"+enr.ID+"/payment-status", adminToken,
		marchallObj(t, echoapi.PaymentStatusRequest{Status: enrollment.PaymentStatusPaid}),
	)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment verification failed! code = %v", rec.Code)
	}

	t.Run("already issued", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var got enrollment.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if got.Receipt == nil {
			t.Fatal("expected existing receipt")
		}
		if artifacts.Len() != 1 {
			t.Errorf("artifacts.Len() = %v; want 1 (no re-issuance)", artifacts.Len())
		}
	})

	t.Run("unknown enrollment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/enrollments/404/receipt", adminToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_enrollmentApi_query(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true)
	student1 := createUser(t, "Alice Kalenga", "alice", "alice@test.cd", "", user.StudentRoles, true)
	student2 := createUser(t, "Bob Ilunga", "bob", "bob@test.cd", "", user.StudentRoles, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", user.TeacherRoles, true)
	adminToken := getToken(t, admin)

	crs1 := createCourse(t, "Algebra", "Mathematics", teacher.ID, 10000)
	crs2 := createCourse(t, "Geometry", "Mathematics", teacher.ID, 12000)

	enr1 := createEnrollment(t, student1.ID, crs1.ID, crs1.Price)
	createEnrollment(t, student2.ID, crs1.ID, crs1.Price)
	createEnrollment(t, student1.ID, crs2.ID, crs2.Price)

	get := func(t *testing.T, path string) []enrollment.Enrollment {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var enrs []enrollment.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &enrs); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		return enrs
	}

	t.Run("all", func(t *testing.T) {
		enrs := get(t, "/v1/admin/enrollments")
		if len(enrs) != 3 {
			t.Fatalf("len(enrs) = %v; want 3", len(enrs))
		}
		for _, enr := range enrs {
			if enr.StudentName == "" || enr.StudentEmail == "" || enr.CourseName == "" {
				t.Errorf("missing summary fields: %+v", enr)
			}
		}
	})

	t.Run("filter by student", func(t *testing.T) {
		enrs := get(t, "/v1/admin/enrollments?student="+student1.ID)
		if len(enrs) != 2 {
			t.Errorf("len(enrs) = %v; want 2", len(enrs))
		}
	})

	t.Run("filter by course", func(t *testing.T) {
		enrs := get(t, "/v1/admin/enrollments?course="+crs2.ID)
		if len(enrs) != 1 {
			t.Errorf("len(enrs) = %v; want 1", len(enrs))
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		if _, err := enrSvc.SetPaymentStatus(
			context.Background(), enr1.ID, enrollment.PaymentStatusPaid, admin,
		); err != nil {
			t.Fatalf("SetPaymentStatus() failed: %v", err)
		}
		enrs := get(t, "/v1/admin/enrollments?status=PAID")
		if len(enrs) != 1 {
			t.Fatalf("len(enrs) = %v; want 1", len(enrs))
		}
		if enrs[0].ID != enr1.ID {
			t.Errorf("ID = %v; want %v", enrs[0].ID, enr1.ID)
		}
	})

	t.Run("search by student name", func(t *testing.T) {
		enrs := get(t, "/v1/admin/enrollments?search=kalenga")
		if len(enrs) != 2 {
			t.Errorf("len(enrs) = %v; want 2", len(enrs))
		}
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/enrollments", getToken(t, student1))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})
}
