package model

import (
	"time"

	"github.com/google/uuid"
)

// CallDetailRecord is one parsed signaling event from a CDR file line.
// Integer fields default to 0 when the source token is blank or unparsable.
type CallDetailRecord struct {
	RecordTime time.Time `gorm:"column:record_time;index"`

	// Local leg
	LocalSPC      int32  `gorm:"column:l_spc"`
	LocalSSN      int32  `gorm:"column:l_ssn"`
	LocalRI       int32  `gorm:"column:l_ri"`
	LocalGTI      int32  `gorm:"column:l_gt_i"`
	LocalGTDigits string `gorm:"column:l_gt_digits;size:64"`

	// Remote leg
	RemoteSPC      int32  `gorm:"column:r_spc"`
	RemoteSSN      int32  `gorm:"column:r_ssn"`
	RemoteRI       int32  `gorm:"column:r_ri"`
	RemoteGTI      int32  `gorm:"column:r_gt_i"`
	RemoteGTDigits string `gorm:"column:r_gt_digits;size:64"`

	ServiceCode string `gorm:"column:service_code;size:32"`

	OrigNature int32  `gorm:"column:or_nature"`
	OrigPlan   int32  `gorm:"column:or_plan"`
	OrigDigits string `gorm:"column:or_digits;size:64"`

	DestNature int32  `gorm:"column:de_nature"`
	DestPlan   int32  `gorm:"column:de_plan"`
	DestDigits string `gorm:"column:de_digits;size:64"`

	ISDNNature int32  `gorm:"column:isdn_nature"`
	ISDNPlan   int32  `gorm:"column:isdn_plan"`
	MSISDN     string `gorm:"column:msisdn;index;size:32"`

	VLRNature int32  `gorm:"column:vlr_nature"`
	VLRPlan   int32  `gorm:"column:vlr_plan"`
	IMSI      string `gorm:"column:imsi;index;size:32"`
	VLRDigits string `gorm:"column:vlr_digits;size:64"`

	Status string `gorm:"column:status;size:32"`
	Type   string `gorm:"column:type;size:32"`

	Tstamp time.Time `gorm:"column:tstamp"`

	LocalDialogID  int64 `gorm:"column:local_dialog_id"`
	RemoteDialogID int64 `gorm:"column:remote_dialog_id"`
	DialogDuration int64 `gorm:"column:dialog_duration"`

	USSDString string `gorm:"column:ussd_string;type:text"`
}

// RecordColumns returns the ordered column names for COPY into cdr.call_detail_records.
func RecordColumns() []string {
	return []string{
		"ingest_batch_id",
		"chunk_seq",
		"record_time",
		"l_spc",
		"l_ssn",
		"l_ri",
		"l_gt_i",
		"l_gt_digits",
		"r_spc",
		"r_ssn",
		"r_ri",
		"r_gt_i",
		"r_gt_digits",
		"service_code",
		"or_nature",
		"or_plan",
		"or_digits",
		"de_nature",
		"de_plan",
		"de_digits",
		"isdn_nature",
		"isdn_plan",
		"msisdn",
		"vlr_nature",
		"vlr_plan",
		"imsi",
		"vlr_digits",
		"status",
		"type",
		"tstamp",
		"local_dialog_id",
		"remote_dialog_id",
		"dialog_duration",
		"ussd_string",
	}
}

// CopyValues returns the record values in the same order as RecordColumns(),
// suitable for pgx CopyFromSource.
func (r *CallDetailRecord) CopyValues(batchID uuid.UUID, seq int) []any {
	return []any{
		batchID,
		int32(seq),
		r.RecordTime,
		r.LocalSPC,
		r.LocalSSN,
		r.LocalRI,
		r.LocalGTI,
		r.LocalGTDigits,
		r.RemoteSPC,
		r.RemoteSSN,
		r.RemoteRI,
		r.RemoteGTI,
		r.RemoteGTDigits,
		r.ServiceCode,
		r.OrigNature,
		r.OrigPlan,
		r.OrigDigits,
		r.DestNature,
		r.DestPlan,
		r.DestDigits,
		r.ISDNNature,
		r.ISDNPlan,
		r.MSISDN,
		r.VLRNature,
		r.VLRPlan,
		r.IMSI,
		r.VLRDigits,
		r.Status,
		r.Type,
		r.Tstamp,
		r.LocalDialogID,
		r.RemoteDialogID,
		r.DialogDuration,
		r.USSDString,
	}
}

// Chunk is one bounded batch of records persisted by a single bulk write.
type Chunk struct {
	BatchID uuid.UUID
	Seq     int
	Records []CallDetailRecord
}

// Len returns the number of records in the chunk.
func (c Chunk) Len() int { return len(c.Records) }
