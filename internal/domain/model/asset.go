package model

import "strings"

type Asset struct {
	ID         string      `json:"id"`
	Operations []Operation `json:"operations"`
}

// AssetUpload is returned when an asset record is created; the links are only valid for the
// upload of that asset's source file.
type AssetUpload struct {
	AssetID              string `json:"assetId"`
	UploadLink           string `json:"uploadLink"`
	FinishFileUploadLink string `json:"finishFileUploadLink"`
	CancelFileUploadLink string `json:"cancelFileUploadLink"`
}

func (u AssetUpload) Validate() error {
	var missing []string
	if u.AssetID == "" {
		missing = append(missing, "assetId")
	}
	if u.UploadLink == "" {
		missing = append(missing, "uploadLink")
	}
	if u.FinishFileUploadLink == "" {
		missing = append(missing, "finishFileUploadLink")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "asset response is missing " + strings.Join(e.Fields, ", ")
}
