package core

import (
	"path/filepath"
	"strings"
)

// FormatID enumerates every recognised format.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtGIF  FormatID = "gif"
	FmtWebP FormatID = "webp"
	FmtTIFF FormatID = "tiff"

	FmtMP3  FormatID = "mp3"
	FmtFLAC FormatID = "flac"
	FmtOGG  FormatID = "ogg"
	FmtOpus FormatID = "opus"
	FmtM4A  FormatID = "m4a"
	FmtWAV  FormatID = "wav"

	FmtMP4  FormatID = "mp4"
	FmtMOV  FormatID = "mov"
	FmtMKV  FormatID = "mkv"
	FmtWebM FormatID = "webm"
	FmtAVI  FormatID = "avi"

	FmtPDF  FormatID = "pdf"
	FmtDOCX FormatID = "docx"
	FmtXLSX FormatID = "xlsx"
	FmtPPTX FormatID = "pptx"

	FmtGeneric FormatID = "generic"
)

// Family is the handler variant a format dispatches to.
type Family string

const (
	FamilyPDF     Family = "pdf"
	FamilyOffice  Family = "office"
	FamilyImage   Family = "image"
	FamilyAudio   Family = "audio"
	FamilyVideo   Family = "video"
	FamilyGeneric Family = "generic"
)

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".png":  FmtPNG,
	".gif":  FmtGIF,
	".webp": FmtWebP,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,

	".mp3":  FmtMP3,
	".flac": FmtFLAC,
	".ogg":  FmtOGG,
	".oga":  FmtOGG,
	".opus": FmtOpus,
	".m4a":  FmtM4A,
	".wav":  FmtWAV,
	".wave": FmtWAV,

	".mp4":  FmtMP4,
	".m4v":  FmtMP4,
	".mov":  FmtMOV,
	".qt":   FmtMOV,
	".mkv":  FmtMKV,
	".webm": FmtWebM,
	".avi":  FmtAVI,

	".pdf":  FmtPDF,
	".docx": FmtDOCX,
	".xlsx": FmtXLSX,
	".pptx": FmtPPTX,
}

// Classify returns the FormatID for path based on its extension alone.
// No I/O is performed, so a renamed file is classified by its new name.
func Classify(path string) FormatID {
	ext := strings.ToLower(filepath.Ext(path))
	if id, ok := extMap[ext]; ok {
		return id
	}
	return FmtGeneric
}

// FamilyOf returns the handler family for a format.
func FamilyOf(id FormatID) Family {
	switch id {
	case FmtPDF:
		return FamilyPDF
	case FmtDOCX, FmtXLSX, FmtPPTX:
		return FamilyOffice
	case FmtJPEG, FmtPNG, FmtGIF, FmtWebP, FmtTIFF:
		return FamilyImage
	case FmtMP3, FmtFLAC, FmtOGG, FmtOpus, FmtM4A, FmtWAV:
		return FamilyAudio
	case FmtMP4, FmtMOV, FmtMKV, FmtWebM, FmtAVI:
		return FamilyVideo
	default:
		return FamilyGeneric
	}
}

// MediaTypeFor returns the broad media category for a format.
func MediaTypeFor(id FormatID) string {
	switch FamilyOf(id) {
	case FamilyImage:
		return "image"
	case FamilyAudio:
		return "audio"
	case FamilyVideo:
		return "video"
	case FamilyPDF, FamilyOffice:
		return "document"
	default:
		return "file"
	}
}
