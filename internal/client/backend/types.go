package backend

// Shapes mirror the OwnaFarm backend API payloads (snake_case JSON).

// NonceResponse is returned by GET /admin/auth/nonce.
type NonceResponse struct {
	Nonce       string `json:"nonce"`
	SignMessage string `json:"sign_message"`
}

// Admin describes the authenticated admin returned at login.
type Admin struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
}

// LoginRequest is the body of POST /admin/auth/login.
type LoginRequest struct {
	WalletAddress string `json:"wallet_address"`
	Signature     string `json:"signature"`
	Nonce         string `json:"nonce"`
}

// LoginResponse is returned by POST /admin/auth/login.
type LoginResponse struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}

// Farmer is one backend farmer record.
type Farmer struct {
	ID            string             `json:"id"`
	FullName      string             `json:"full_name"`
	Email         string             `json:"email"`
	PhoneNumber   string             `json:"phone_number"`
	BusinessName  string             `json:"business_name"`
	BusinessType  string             `json:"business_type"`
	Province      string             `json:"province"`
	City          string             `json:"city"`
	District      string             `json:"district"`
	Status        string             `json:"status"`
	TokenID       *uint64            `json:"token_id,omitempty"`
	Documents     []UploadedDocument `json:"documents,omitempty"`
	CreatedAt     string             `json:"created_at"`
	ReviewedAt    string             `json:"reviewed_at,omitempty"`
	RejectReason  string             `json:"reject_reason,omitempty"`
	WalletAddress string             `json:"wallet_address,omitempty"`
}

type listFarmersResponse struct {
	Status string `json:"status"`
	Data   struct {
		Farmers []Farmer `json:"farmers"`
	} `json:"data"`
}

// PresignedURL is one time-limited upload URL issued by the backend.
type PresignedURL struct {
	DocumentType string `json:"document_type"`
	UploadURL    string `json:"upload_url"`
	FileKey      string `json:"file_key"`
}

type presignRequest struct {
	DocumentTypes []string `json:"document_types"`
}

type presignResponse struct {
	Status string `json:"status"`
	Data   struct {
		URLs []PresignedURL `json:"urls"`
	} `json:"data"`
}

// UploadedDocument references a document that landed in object storage.
type UploadedDocument struct {
	DocumentType string `json:"document_type"`
	FileKey      string `json:"file_key"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
}

// PersonalInfo is the personal section of a registration.
type PersonalInfo struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	IDNumber    string `json:"id_number"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	Province    string `json:"province"`
	City        string `json:"city"`
	District    string `json:"district"`
	PostalCode  string `json:"postal_code"`
}

// BusinessInfo is the business section of a registration.
type BusinessInfo struct {
	BusinessName      string   `json:"business_name"`
	BusinessType      string   `json:"business_type"`
	NPWP              string   `json:"npwp"`
	BankName          string   `json:"bank_name"`
	BankAccountNumber string   `json:"bank_account_number"`
	BankAccountName   string   `json:"bank_account_name"`
	YearsOfExperience int      `json:"years_of_experience"`
	CropsExpertise    []string `json:"crops_expertise"`
}

// RegisterRequest is the body of POST /farmers/register.
type RegisterRequest struct {
	PersonalInfo PersonalInfo       `json:"personal_info"`
	BusinessInfo BusinessInfo       `json:"business_info"`
	Documents    []UploadedDocument `json:"documents"`
}

// RegisterResponse is returned by POST /farmers/register.
type RegisterResponse struct {
	Status string `json:"status"`
	Data   struct {
		FarmerID string `json:"farmer_id"`
		Status   string `json:"status"`
	} `json:"data"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}
