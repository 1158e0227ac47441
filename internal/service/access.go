// access.go — Access Gate: допуск к созданию ссылок.
//
// Два пути:
//   - интерактивный — сотрудник с ролью admin или technician (JWT);
//   - программный — API-ключ в заголовке + проверка адреса по allow-list.
//
// Пустой allow-list означает «разрешено всем».
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/bigkaa/passlink/internal/crypto"
	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
)

// AccessGate проверяет право на создание ссылок.
type AccessGate struct {
	creds  repository.APICredentialRepository
	allow  repository.AllowListRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAccessGate создаёт Access Gate.
func NewAccessGate(
	creds repository.APICredentialRepository,
	allow repository.AllowListRepository,
	logger *slog.Logger,
) *AccessGate {
	return &AccessGate{
		creds:  creds,
		allow:  allow,
		logger: logger.With(slog.String("component", "access_gate")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AuthorizeInteractive пропускает только admin и technician.
func (g *AccessGate) AuthorizeInteractive(rc RequestContext) error {
	return authorizeStaff(rc)
}

// AuthenticateAPIKey проверяет API-ключ и адрес источника.
// Неизвестный или неактивный ключ — ErrAuthentication,
// адрес вне непустого allow-list — ErrForbidden.
func (g *AccessGate) AuthenticateAPIKey(ctx context.Context, rawKey, sourceIP string) (*model.APICredential, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("%w: API-ключ не передан", ErrAuthentication)
	}

	cred, err := g.creds.GetActiveByHash(ctx, crypto.HashCredential(rawKey))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			g.logger.Warn("Неизвестный или неактивный API-ключ",
				slog.String("source_ip", sourceIP),
			)
			return nil, fmt.Errorf("%w: неизвестный или неактивный API-ключ", ErrAuthentication)
		}
		return nil, fmt.Errorf("поиск API-ключа: %w", err)
	}

	entries, err := g.allow.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение allow-list: %w", err)
	}
	if len(entries) > 0 && !MatchIP(entries, sourceIP) {
		g.logger.Warn("Адрес не входит в allow-list",
			slog.String("credential_id", cred.ID),
			slog.String("source_ip", sourceIP),
		)
		return nil, fmt.Errorf("%w: %s", ErrForbidden, sourceIP)
	}

	// last_used_at — best-effort, на результат не влияет
	if err := g.creds.TouchLastUsed(ctx, cred.ID, g.now()); err != nil {
		g.logger.Warn("Не удалось обновить last_used_at API-ключа",
			slog.String("credential_id", cred.ID),
			slog.String("error", err.Error()),
		)
	}

	return cred, nil
}

// MatchIP проверяет адрес по записям allow-list (точный адрес или CIDR).
// Некорректный адрес не совпадает ни с чем.
func MatchIP(entries []*model.AllowListEntry, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, e := range entries {
		if strings.Contains(e.CIDR, "/") {
			prefix, err := netip.ParsePrefix(e.CIDR)
			if err != nil {
				continue
			}
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		entryAddr, err := netip.ParseAddr(e.CIDR)
		if err != nil {
			continue
		}
		if entryAddr.Unmap() == addr {
			return true
		}
	}
	return false
}

// NormalizeCIDR проверяет и приводит запись allow-list к канонической форме:
// адрес — без изменений, диапазон — с обнулёнными хостовыми битами.
func NormalizeCIDR(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return "", fmt.Errorf("%w: некорректный CIDR %q", ErrValidation, s)
		}
		return prefix.Masked().String(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("%w: некорректный IP-адрес %q", ErrValidation, s)
	}
	return addr.Unmap().String(), nil
}
