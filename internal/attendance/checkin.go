package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"classattend/internal/apperr"
	"classattend/internal/queue"
)

// AttendRequest is a student's check-in submission. Lat, Lng and
// Distance arrive as form values and are recorded verbatim; only
// Distance is parsed, none are validated against a geofence.
type AttendRequest struct {
	Code         string
	MatricNumber string
	Lat          string
	Lng          string
	Distance     string
	SelfieRef    string
}

// AttendResult is returned when a check-in is committed.
type AttendResult struct {
	FinalizedAt time.Time `json:"datetime"`
}

// ValidateResult is the pre-flight response before a student submits.
type ValidateResult struct {
	CourseTitle string    `json:"course_title"`
	CourseCode  string    `json:"course_code"`
	Date        time.Time `json:"date"`
	Lat         string    `json:"lat"`
	Lng         string    `json:"long"`
}

// CommittedEvent is the audit record published after a successful check-in.
type CommittedEvent struct {
	CheckInID    string    `json:"checkin_id"`
	SessionID    string    `json:"session_id"`
	CourseID     string    `json:"course_id"`
	MatricNumber string    `json:"matric_number"`
	FinalizedAt  time.Time `json:"finalized_at"`
}

// EventTypeCommitted tags committed check-in audit messages on the queue.
const EventTypeCommitted = "checkin.committed"

// Attend runs the check-in workflow: ordered precondition checks, a
// provisional insert, then the one-shot face gate. Every rejection after
// the insert deletes the provisional row, so a failed attempt leaves no
// trace and the student may retry with a fresh submission.
func (s *Service) Attend(ctx context.Context, req AttendRequest) (AttendResult, error) {
	res, err := s.attend(ctx, req)
	checkinAttempts.WithLabelValues(attemptResult(err)).Inc()
	return res, err
}

func (s *Service) attend(ctx context.Context, req AttendRequest) (AttendResult, error) {
	if req.Code == "" {
		return AttendResult{}, apperr.Validation("attendance_code", "please provide the course attendance code")
	}
	if req.MatricNumber == "" {
		return AttendResult{}, apperr.Validation("matric_number", "please provide your matric number")
	}
	const gpsMsg = "sorry could not determine your position, please make sure that GPS is enabled and permission granted to the app"
	if req.Distance == "" {
		return AttendResult{}, apperr.Validation("distance", gpsMsg)
	}
	if req.Lat == "" {
		return AttendResult{}, apperr.Validation("lat", gpsMsg)
	}
	if req.Lng == "" {
		return AttendResult{}, apperr.Validation("long", gpsMsg)
	}
	if req.SelfieRef == "" {
		return AttendResult{}, apperr.Validation("image", "please capture an image showing your face")
	}
	distance, err := strconv.ParseFloat(req.Distance, 64)
	if err != nil {
		return AttendResult{}, apperr.Validation("distance", gpsMsg)
	}

	sess, err := s.sessions.GetByCode(ctx, req.Code)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return AttendResult{}, apperr.NotFound("no attendance list was found, make sure you provide a valid attendance code")
		}
		return AttendResult{}, err
	}

	// Commit forces the window closed, so openness is checked first; a
	// committed session then reads as "already submitted".
	if !sess.IsOpen {
		if sess.IsCommitted {
			return AttendResult{}, apperr.StateConflict("attendance list already submitted")
		}
		return AttendResult{}, apperr.StateConflict("attendance list found but is not open")
	}
	if sess.IsCommitted {
		return AttendResult{}, apperr.StateConflict("attendance list already submitted")
	}

	st, err := s.students.GetByMatric(ctx, req.MatricNumber)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return AttendResult{}, apperr.NotFound("this student is not enrolled yet")
		}
		return AttendResult{}, err
	}

	if exists, err := s.checkins.Exists(ctx, st.ID, sess.ID); err != nil {
		return AttendResult{}, err
	} else if exists {
		return AttendResult{}, apperr.Conflict("this student is already on the list")
	}

	// The provisional row is persisted before the gate runs so the
	// attempt is auditable even when the capability fails outright. Two
	// racing submissions both reach this insert; the unique
	// (student, session) constraint rejects the loser as a conflict.
	record := CheckIn{
		ID:        uuid.NewString(),
		StudentID: st.ID,
		SessionID: sess.ID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Distance:  distance,
		SelfieRef: req.SelfieRef,
		CreatedAt: s.nowFunc().UTC(),
	}
	if err := s.checkins.Insert(ctx, record); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			return AttendResult{}, apperr.Conflict("this student is already on the list")
		}
		return AttendResult{}, err
	}

	match, err := s.verifyFace(ctx, st.PhotoRef, req.SelfieRef)
	if err != nil {
		var reject *apperr.Error
		if errors.As(err, &reject) && reject.Kind == apperr.KindBiometricReject {
			// Fail closed: the attempt leaves no trace.
			s.rollback(ctx, record.ID)
		}
		return AttendResult{}, err
	}
	if !match {
		s.rollback(ctx, record.ID)
		return AttendResult{}, apperr.BiometricReject(1, "sorry your face did not match with the one you submitted during enrollment")
	}

	finalizedAt := s.nowFunc().UTC()
	if err := s.checkins.Finalize(ctx, record.ID, finalizedAt); err != nil {
		return AttendResult{}, err
	}

	s.publishCommitted(ctx, CommittedEvent{
		CheckInID:    record.ID,
		SessionID:    sess.ID,
		CourseID:     sess.CourseID,
		MatricNumber: st.MatricNumber,
		FinalizedAt:  finalizedAt,
	})

	return AttendResult{FinalizedAt: finalizedAt}, nil
}

// Validate is the pre-flight check a student runs before submitting: it
// applies the same session and enrollment checks as Attend without
// touching the face gate or writing anything.
func (s *Service) Validate(ctx context.Context, code, matric string) (ValidateResult, error) {
	if code == "" {
		return ValidateResult{}, apperr.Validation("attendance_code", "please provide the course attendance code")
	}
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return ValidateResult{}, apperr.NotFound("no open attendance found, make sure the attendance code is correct")
		}
		return ValidateResult{}, err
	}
	if !sess.IsOpen {
		if sess.IsCommitted {
			return ValidateResult{}, apperr.StateConflict("attendance list already submitted")
		}
		return ValidateResult{}, apperr.StateConflict("attendance list found but is not open")
	}
	if sess.IsCommitted {
		return ValidateResult{}, apperr.StateConflict("attendance list already submitted")
	}

	if _, err := s.students.GetByMatric(ctx, matric); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return ValidateResult{}, apperr.NotFound("student not enrolled")
		}
		return ValidateResult{}, err
	}

	crs, err := s.courses.GetByID(ctx, sess.CourseID)
	if err != nil {
		return ValidateResult{}, err
	}
	return ValidateResult{
		CourseTitle: crs.Title,
		CourseCode:  crs.Code,
		Date:        sess.CreatedAt,
		Lat:         sess.Lat,
		Lng:         sess.Lng,
	}, nil
}

// verifyFace runs the one-shot gate: exactly one face in the selfie,
// encode both images, compare within tolerance. Timeouts count as a
// no-match rejection rather than a crash.
func (s *Service) verifyFace(ctx context.Context, enrollmentRef, selfieRef string) (bool, error) {
	start := time.Now()
	defer func() { faceGateSeconds.Observe(time.Since(start).Seconds()) }()

	faces, err := s.face.DetectFaces(ctx, selfieRef)
	if err != nil {
		return false, s.gateError(err)
	}
	if n := len(faces); n != 1 {
		if n == 0 {
			return false, apperr.BiometricReject(0, "sorry no face was detected, make sure your face is showing in the image")
		}
		return false, apperr.BiometricReject(n, fmt.Sprintf("sorry %d faces were detected, only one face should be in the image", n))
	}

	selfieEnc, err := s.face.EncodeFace(ctx, selfieRef, faces[0])
	if err != nil {
		return false, s.gateError(err)
	}

	// Enrollment photos are single-face by construction; no encoding is
	// stored, so it is recomputed from the stored photo here.
	enrollFaces, err := s.face.DetectFaces(ctx, enrollmentRef)
	if err != nil {
		return false, s.gateError(err)
	}
	if len(enrollFaces) == 0 {
		return false, apperr.Unexpected(fmt.Errorf("enrollment photo %s has no detectable face", enrollmentRef))
	}
	enrollEnc, err := s.face.EncodeFace(ctx, enrollmentRef, enrollFaces[0])
	if err != nil {
		return false, s.gateError(err)
	}

	match, err := s.face.Compare(ctx, enrollEnc, selfieEnc, s.tolerance)
	if err != nil {
		return false, s.gateError(err)
	}
	return match, nil
}

// gateError classifies a face capability failure: timeouts reject like a
// failed match, anything else is unexpected and keeps the provisional
// row for audit.
func (s *Service) gateError(err error) error {
	if isTimeout(err) {
		return apperr.BiometricReject(1, "sorry your face could not be verified in time, please try again")
	}
	return apperr.Unexpected(err)
}

func (s *Service) rollback(ctx context.Context, checkinID string) {
	if err := s.checkins.Delete(ctx, checkinID); err != nil {
		log.Printf("checkin %s: rollback failed: %v", checkinID, err)
	}
}

func (s *Service) publishCommitted(ctx context.Context, evt CommittedEvent) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("checkin %s: encode audit event: %v", evt.CheckInID, err)
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: EventTypeCommitted, Body: body}); err != nil {
		log.Printf("checkin %s: publish audit event: %v", evt.CheckInID, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func attemptResult(err error) string {
	if err == nil {
		return "committed"
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindStateConflict:
		return "state_conflict"
	case apperr.KindConflict:
		return "duplicate"
	case apperr.KindBiometricReject:
		return "rejected"
	default:
		return "error"
	}
}
