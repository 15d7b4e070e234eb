package storage

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Бакеты публичного хранилища
const (
	BucketAvatars  = "avatars"
	BucketVehicles = "vehicles"

	placeholderBase    = "https://placehold.co/150x150"
	vehiclePlaceholder = "https://placehold.co/150x150/gray/white?text=Portada"
)

// PublicURLs строит публичные ссылки на файлы бакетов:
// {base}/{bucket}/{key}
type PublicURLs struct {
	base string
}

func NewPublicURLs(base string) *PublicURLs {
	return &PublicURLs{base: strings.TrimRight(base, "/")}
}

// PublicURL — ссылка на объект key в бакете bucket
func (p *PublicURLs) PublicURL(bucket, key string) string {
	key = strings.TrimLeft(key, "/")
	parts := strings.Split(key, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return p.base + "/" + bucket + "/" + strings.Join(parts, "/")
}

// AvatarURL — аватар пользователя либо заглушка с инициалами
func (p *PublicURLs) AvatarURL(profileKey, fullname string) string {
	if strings.TrimSpace(profileKey) == "" {
		ini := Initials(fullname)
		if ini == "" {
			return placeholderBase
		}
		return placeholderBase + "?text=" + url.QueryEscape(ini)
	}
	return p.PublicURL(BucketAvatars, profileKey)
}

// VehicleURL — фото автомобиля либо серая заглушка
func (p *PublicURLs) VehicleURL(groundKey string) string {
	if strings.TrimSpace(groundKey) == "" {
		return vehiclePlaceholder
	}
	return p.PublicURL(BucketVehicles, groundKey)
}

// Initials — первые буквы двух первых слов имени, заглавные
func Initials(fullname string) string {
	var b strings.Builder
	for _, word := range strings.Fields(fullname) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		if utf8.RuneCountInString(b.String()) == 2 {
			break
		}
	}
	return b.String()
}
