package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// Ограничение на размер чек-листа. Плейбук - короткий список
// дисциплинарных правил, а не документ.
const maxPlaybookRules = 50

// CreatePlaybookRequest - запрос на создание плейбука с правилами
type CreatePlaybookRequest struct {
	UserID int      `json:"user_id"`
	Name   string   `json:"name"`
	Rules  []string `json:"rules"`
}

// PlaybookService управляет торговыми чек-листами и их привязкой
// к сделкам.
//
// Правила плейбука неизменяемы после создания: отметки о выполнении
// ссылаются на rule_id, и редактирование правила задним числом
// исказило бы историю дисциплины. Нужны другие правила - создаётся
// новый плейбук.
type PlaybookService struct {
	playbookRepo PlaybookRepositoryInterface
	tradeRepo    TradeRepositoryInterface
	logger       *utils.Logger
}

// NewPlaybookService создает новый экземпляр PlaybookService
func NewPlaybookService(
	playbookRepo PlaybookRepositoryInterface,
	tradeRepo TradeRepositoryInterface,
	logger *utils.Logger,
) *PlaybookService {
	return &PlaybookService{
		playbookRepo: playbookRepo,
		tradeRepo:    tradeRepo,
		logger:       logger,
	}
}

// Create создает плейбук вместе с правилами атомарно.
// Порядок правил в запросе становится их позицией в чек-листе.
func (s *PlaybookService) Create(req *CreatePlaybookRequest) (*models.Playbook, error) {
	if err := validatePlaybookRequest(req); err != nil {
		return nil, err
	}

	playbook := &models.Playbook{
		UserID: req.UserID,
		Name:   strings.TrimSpace(req.Name),
		Rules:  make([]models.PlaybookRule, 0, len(req.Rules)),
	}
	for i, text := range req.Rules {
		playbook.Rules = append(playbook.Rules, models.PlaybookRule{
			Position: i + 1,
			Text:     strings.TrimSpace(text),
		})
	}

	if err := s.playbookRepo.Create(playbook); err != nil {
		return nil, err
	}

	s.logger.Info("playbook created",
		zap.Int("playbook_id", playbook.ID),
		zap.Int("user_id", playbook.UserID),
		zap.Int("rules", len(playbook.Rules)),
	)
	return playbook, nil
}

// GetByID возвращает плейбук с правилами
func (s *PlaybookService) GetByID(id int) (*models.Playbook, error) {
	return s.playbookRepo.GetByID(id)
}

// GetByUserID возвращает все плейбуки пользователя
func (s *PlaybookService) GetByUserID(userID int) ([]*models.Playbook, error) {
	return s.playbookRepo.GetByUserID(userID)
}

// Delete удаляет плейбук вместе с правилами и отметками
func (s *PlaybookService) Delete(id int) error {
	return s.playbookRepo.Delete(id)
}

// SetCheck отмечает или снимает выполнение правила для сделки.
// Повторная отметка уже отмеченного правила - no-op.
func (s *PlaybookService) SetCheck(tradeID, ruleID int, checked bool) error {
	// Сделка должна существовать: отметки для несуществующих сделок
	// ломали бы статистику выполнения
	if _, err := s.tradeRepo.GetByID(tradeID); err != nil {
		return err
	}
	return s.playbookRepo.SetCheck(tradeID, ruleID, checked)
}

// Progress возвращает прогресс выполнения чек-листа для сделки
func (s *PlaybookService) Progress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error) {
	if _, err := s.tradeRepo.GetByID(tradeID); err != nil {
		return nil, err
	}
	return s.playbookRepo.GetProgress(tradeID, playbookID)
}

func validatePlaybookRequest(req *CreatePlaybookRequest) error {
	var verr utils.ValidationErrors

	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "name is required")
	}
	if len(req.Rules) == 0 {
		verr.Add("rules", "at least one rule is required")
	}
	if len(req.Rules) > maxPlaybookRules {
		verr.Add("rules", "too many rules")
	}
	for i, text := range req.Rules {
		if strings.TrimSpace(text) == "" {
			verr.Add("rules", fmt.Sprintf("rule %d is empty", i+1))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
