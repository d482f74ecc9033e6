package record

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRecordType = "consultation"
	DefaultTitle      = "Medical Record"
)

var ErrInvalidRecord = errors.New("record requires a patient health id and data")

// MedicalRecord is a clinical entry filed under a patient's Health ID. Data
// is an opaque document; the store never inspects it.
type MedicalRecord struct {
	ID              string                 `json:"id"`
	OwnerEmail      string                 `json:"email"`
	PatientHealthID string                 `json:"patientHealthId"`
	RecordType      string                 `json:"type"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Data            map[string]interface{} `json:"data,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       *time.Time             `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts documents written before the patientHealthId rename,
// which carry the Health ID as "healthId".
func (r *MedicalRecord) UnmarshalJSON(b []byte) error {
	type alias MedicalRecord
	aux := struct {
		*alias
		LegacyHealthID string `json:"healthId"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if r.PatientHealthID == "" {
		r.PatientHealthID = aux.LegacyHealthID
	}
	return nil
}

func (r *MedicalRecord) Validate() error {
	if r.PatientHealthID == "" || len(r.Data) == 0 {
		return ErrInvalidRecord
	}
	return nil
}

// prepare validates r and fills the id and creation time when absent.
func (r *MedicalRecord) prepare(now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
	return nil
}

// FromDocument builds a record from a free-form document submitted by
// ownerEmail. The Health ID is read from patientHealthId or healthId, the
// type from recordType, type or treatmentType. The whole document becomes
// Data. An id carried by the document stays in Data only.
func FromDocument(ownerEmail string, doc map[string]interface{}) *MedicalRecord {
	r := &MedicalRecord{
		OwnerEmail:      ownerEmail,
		PatientHealthID: stringField(doc, "patientHealthId", "healthId"),
		RecordType:      stringField(doc, "recordType", "type", "treatmentType"),
		Title:           stringField(doc, "title"),
		Description:     stringField(doc, "description"),
		Data:            copyMap(doc),
	}
	if r.RecordType == "" {
		r.RecordType = DefaultRecordType
	}
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	return r
}

// Patch holds the mutable fields of an update. Nil fields are left alone;
// Data keys are merged shallowly into the stored Data.
type Patch struct {
	RecordType  *string
	Title       *string
	Description *string
	Data        map[string]interface{}
}

// immutableFields cannot be changed through a patch document.
var immutableFields = map[string]bool{
	"id": true, "email": true, "ownerEmail": true, "patientHealthId": true,
	"healthId": true, "createdAt": true, "updatedAt": true,
}

// PatchFromDocument converts an update document into a Patch. A nested
// "data" object is merged into Data; other unknown keys go to Data as well.
func PatchFromDocument(doc map[string]interface{}) Patch {
	var p Patch
	for k, v := range doc {
		switch {
		case k == "type" || k == "recordType":
			if s, ok := v.(string); ok {
				p.RecordType = &s
			}
		case k == "title":
			if s, ok := v.(string); ok {
				p.Title = &s
			}
		case k == "description":
			if s, ok := v.(string); ok {
				p.Description = &s
			}
		case k == "data":
			if m, ok := v.(map[string]interface{}); ok {
				for dk, dv := range m {
					p.setData(dk, dv)
				}
			}
		case immutableFields[k]:
		default:
			p.setData(k, v)
		}
	}
	return p
}

func (p *Patch) setData(k string, v interface{}) {
	if p.Data == nil {
		p.Data = make(map[string]interface{})
	}
	p.Data[k] = copyValue(v)
}

func (p Patch) IsEmpty() bool {
	return p.RecordType == nil && p.Title == nil && p.Description == nil && len(p.Data) == 0
}

// Apply merges p into r and stamps UpdatedAt.
func (r *MedicalRecord) Apply(p Patch, now time.Time) {
	if p.RecordType != nil {
		r.RecordType = *p.RecordType
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if len(p.Data) > 0 {
		if r.Data == nil {
			r.Data = make(map[string]interface{}, len(p.Data))
		}
		for k, v := range p.Data {
			r.Data[k] = copyValue(v)
		}
	}
	ts := now.UTC()
	r.UpdatedAt = &ts
}

func copyRecord(r *MedicalRecord) *MedicalRecord {
	cp := *r
	cp.Data = copyMap(r.Data)
	if r.UpdatedAt != nil {
		ts := *r.UpdatedAt
		cp.UpdatedAt = &ts
	}
	return &cp
}

func stringField(doc map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
