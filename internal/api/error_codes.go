// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 脚本解析相关错误
	ErrorScriptSyntax          = "SCRIPT_SYNTAX_ERROR"
	ErrorScriptMissingSequence = "SCRIPT_MISSING_SEQUENCE"

	// 备份相关错误
	ErrorBackupInvalid      = "BACKUP_INVALID"
	ErrorBackupSaveFailed   = "BACKUP_SAVE_FAILED"
	ErrorBackupNotFound     = "BACKUP_NOT_FOUND"
	ErrorBackupExportFailed = "BACKUP_EXPORT_FAILED"

	// 参考图加载相关错误
	ErrorMediaNetwork          = "MEDIA_NETWORK_ERROR"
	ErrorMediaNotAnImage       = "MEDIA_NOT_AN_IMAGE"
	ErrorMediaConversionFailed = "MEDIA_CONVERSION_FAILED"

	// 凭证相关错误
	ErrorCredentialSaveFailed = "CREDENTIAL_SAVE_FAILED"
)
