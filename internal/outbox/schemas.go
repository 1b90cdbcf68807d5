package outbox

const bookingNotificationSchema = `{
  "type": "object",
  "title": "BookingNotification",
  "properties": {
    "kind": {"type": "string"},
    "tenant_id": {"type": "string"},
    "member_id": {"type": "string"},
    "booking_id": {"type": "string"},
    "session_id": {"type": "string"},
    "message": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["kind", "tenant_id", "member_id", "booking_id", "session_id", "message", "occurred_at"],
  "additionalProperties": false
}`

const attendanceEventSchema = `{
  "type": "object",
  "title": "AttendanceEvent",
  "properties": {
    "kind": {"type": "string"},
    "tenant_id": {"type": "string"},
    "member_id": {"type": "string"},
    "booking_id": {"type": "string"},
    "session_id": {"type": "string"},
    "message": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["kind", "tenant_id", "member_id", "booking_id", "session_id", "occurred_at"],
  "additionalProperties": false
}`
