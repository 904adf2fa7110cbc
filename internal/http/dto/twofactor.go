package dto

type TwoFactorEnrollResponse struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	BackupCodes []string `json:"backup_codes"`
}

type TwoFactorConfirmRequest struct {
	Code string `json:"code"`
}

type TwoFactorDisableRequest struct {
	Code string `json:"code"`
}
