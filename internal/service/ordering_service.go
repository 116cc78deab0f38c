package service

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/monitoring"
	"course_connect_backend/pkg/tracing"
	"errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// parkOffset 批量重排时的临时偏移量，加在当前最大值之上
const parkOffset = 1000

// OrderUpdate 批量重排中的一项
type OrderUpdate struct {
	ID    uint `json:"id" binding:"required"`
	Order int  `json:"order" binding:"required"`
}

// OrderingService 维护章节/课时在父级内 1..N 连续唯一的顺序
type OrderingService struct {
	Repo *repository.OrderingRepository
	Tx   *repository.Transactor
	Cfg  config.OrderingConfig
}

func NewOrderingService(repo *repository.OrderingRepository, tx *repository.Transactor, cfg config.OrderingConfig) *OrderingService {
	return &OrderingService{Repo: repo, Tx: tx, Cfg: cfg}
}

func scopeErrors(scope repository.OrderScope) (parent, item *util.AppError) {
	if scope.Table == repository.ModuleOrderScope.Table {
		return util.ErrCourseNotFound, util.ErrModuleNotFound
	}
	return util.ErrModuleNotFound, util.ErrLessonNotFound
}

func notFoundAs(err error, target *util.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

// HighestOrder 返回父级下当前最大的顺序号，空列表为 0
func (s *OrderingService) HighestOrder(ctx context.Context, scope repository.OrderScope, parentID uint) (int, error) {
	return s.Repo.MaxOrder(s.Repo.DB.WithContext(ctx), scope, parentID)
}

// Insert 在父级下新增一项。desired 为空时追加到末尾；
// 指定位置已被占用时把该位置及之后的记录后移一位腾出空间
func (s *OrderingService) Insert(ctx context.Context, scope repository.OrderScope, parentID uint, desired *int, create func(tx *gorm.DB, order int) error) (int, error) {
	parentErr, _ := scopeErrors(scope)
	var position int
	ctx, span := tracing.Start(ctx, "ordering.insert", attribute.String("scope", scope.Name), attribute.Int("parent_id", int(parentID)))

	err := s.Tx.Run(ctx, s.Cfg.Isolation, func(tx *gorm.DB) error {
		if err := s.Repo.LockParent(tx, scope, parentID); err != nil {
			return notFoundAs(err, parentErr)
		}

		count, err := s.Repo.Count(tx, scope, parentID)
		if err != nil {
			return err
		}
		maxOrder, err := s.Repo.MaxOrder(tx, scope, parentID)
		if err != nil {
			return err
		}

		if desired == nil {
			position = maxOrder + 1
		} else {
			position = *desired
			if position < 1 || position > count+1 {
				return util.Wrapf(util.ErrOutOfRange, "%s order must be between 1 and %d", scope.Name, count+1)
			}
			if position <= maxOrder {
				if err := s.Repo.ShiftRange(tx, scope, parentID, position, maxOrder, 1); err != nil {
					return err
				}
			}
		}

		return create(tx, position)
	})

	monitoring.OrderingOperations.WithLabelValues(scope.Name, "insert", monitoring.Result(err)).Inc()
	tracing.End(span, err)
	if err != nil {
		return 0, err
	}
	return position, nil
}

// Move 把一项移动到 newOrder，中间的记录顺次让位。
// update 在校验通过后、调整顺序前执行，用于同时修改其他字段
func (s *OrderingService) Move(ctx context.Context, scope repository.OrderScope, itemID uint, newOrder int, update func(tx *gorm.DB, item repository.OrderedItem) error) error {
	parentErr, itemErr := scopeErrors(scope)
	ctx, span := tracing.Start(ctx, "ordering.move", attribute.String("scope", scope.Name), attribute.Int("item_id", int(itemID)))

	err := s.Tx.Run(ctx, s.Cfg.Isolation, func(tx *gorm.DB) error {
		item, err := s.Repo.FindItem(tx, scope, itemID)
		if err != nil {
			return notFoundAs(err, itemErr)
		}
		if err := s.Repo.LockParent(tx, scope, item.ParentID); err != nil {
			return notFoundAs(err, parentErr)
		}
		// 加锁后重新读取，顺序可能已被其他事务修改
		item, err = s.Repo.FindItem(tx, scope, itemID)
		if err != nil {
			return notFoundAs(err, itemErr)
		}

		count, err := s.Repo.Count(tx, scope, item.ParentID)
		if err != nil {
			return err
		}
		if newOrder < 1 || newOrder > count {
			return util.Wrapf(util.ErrOutOfRange, "%s order must be between 1 and %d", scope.Name, count)
		}

		if update != nil {
			if err := update(tx, item); err != nil {
				return err
			}
		}

		if newOrder == item.Order {
			return nil
		}

		// 0 作为占位值，不会与正数和取反后的负数冲突
		if err := s.Repo.SetOrder(tx, scope, item.ID, 0); err != nil {
			return err
		}
		if newOrder < item.Order {
			err = s.Repo.ShiftRange(tx, scope, item.ParentID, newOrder, item.Order-1, 1)
		} else {
			err = s.Repo.ShiftRange(tx, scope, item.ParentID, item.Order+1, newOrder, -1)
		}
		if err != nil {
			return err
		}
		return s.Repo.SetOrder(tx, scope, item.ID, newOrder)
	})

	monitoring.OrderingOperations.WithLabelValues(scope.Name, "move", monitoring.Result(err)).Inc()
	tracing.End(span, err)
	return err
}

// Delete 删除一项并把后面的记录前移一位。remove 负责删除记录本身及其下级数据
func (s *OrderingService) Delete(ctx context.Context, scope repository.OrderScope, itemID uint, remove func(tx *gorm.DB, item repository.OrderedItem) error) (repository.OrderedItem, error) {
	parentErr, itemErr := scopeErrors(scope)
	var deleted repository.OrderedItem
	ctx, span := tracing.Start(ctx, "ordering.delete", attribute.String("scope", scope.Name), attribute.Int("item_id", int(itemID)))

	err := s.Tx.Run(ctx, s.Cfg.DeleteIsolation, func(tx *gorm.DB) error {
		item, err := s.Repo.FindItem(tx, scope, itemID)
		if err != nil {
			return notFoundAs(err, itemErr)
		}
		if err := s.Repo.LockParent(tx, scope, item.ParentID); err != nil {
			return notFoundAs(err, parentErr)
		}
		item, err = s.Repo.FindItem(tx, scope, itemID)
		if err != nil {
			return notFoundAs(err, itemErr)
		}

		if err := remove(tx, item); err != nil {
			return err
		}

		maxOrder, err := s.Repo.MaxOrder(tx, scope, item.ParentID)
		if err != nil {
			return err
		}
		if err := s.Repo.ShiftRange(tx, scope, item.ParentID, item.Order+1, maxOrder, -1); err != nil {
			return err
		}
		deleted = item
		return nil
	})

	monitoring.OrderingOperations.WithLabelValues(scope.Name, "delete", monitoring.Result(err)).Inc()
	tracing.End(span, err)
	return deleted, err
}

// BulkReorder 按映射批量调整顺序，未出现在映射中的记录按原相对顺序填补剩余位置
func (s *OrderingService) BulkReorder(ctx context.Context, scope repository.OrderScope, parentID uint, updates []OrderUpdate) ([]repository.OrderedItem, error) {
	parentErr, _ := scopeErrors(scope)
	if len(updates) == 0 {
		return nil, util.BadRequestError("EMPTY_REORDER", "no order updates provided")
	}

	var result []repository.OrderedItem
	ctx, span := tracing.Start(ctx, "ordering.reorder", attribute.String("scope", scope.Name), attribute.Int("parent_id", int(parentID)), attribute.Int("updates", len(updates)))
	err := s.Tx.Run(ctx, s.Cfg.Isolation, func(tx *gorm.DB) error {
		if err := s.Repo.LockParent(tx, scope, parentID); err != nil {
			return notFoundAs(err, parentErr)
		}

		items, err := s.Repo.ListItems(tx, scope, parentID)
		if err != nil {
			return err
		}

		final, err := planReorder(scope, parentID, items, updates)
		if err != nil {
			return err
		}

		maxOrder := items[len(items)-1].Order
		if err := s.Repo.ParkAll(tx, scope, parentID, maxOrder+parkOffset); err != nil {
			return err
		}
		for _, item := range final {
			if err := s.Repo.SetOrder(tx, scope, item.ID, item.Order); err != nil {
				return err
			}
		}

		result = final
		return nil
	})

	monitoring.OrderingOperations.WithLabelValues(scope.Name, "reorder", monitoring.Result(err)).Inc()
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// planReorder 校验映射并计算每一项的最终顺序，结果按顺序升序排列
func planReorder(scope repository.OrderScope, parentID uint, items []repository.OrderedItem, updates []OrderUpdate) ([]repository.OrderedItem, error) {
	n := len(items)
	belongs := make(map[uint]bool, n)
	for _, item := range items {
		belongs[item.ID] = true
	}

	target := make(map[uint]int, len(updates))
	taken := make(map[int]bool, len(updates))
	for _, u := range updates {
		if !belongs[u.ID] {
			return nil, util.Wrapf(util.ErrBadParent, "%s %d does not belong to parent %d", scope.Name, u.ID, parentID)
		}
		if _, dup := target[u.ID]; dup {
			return nil, util.BadRequestError("DUPLICATE_ITEM", "duplicate id in reorder request")
		}
		if u.Order < 1 || u.Order > n {
			return nil, util.Wrapf(util.ErrOutOfRange, "%s order must be between 1 and %d", scope.Name, n)
		}
		if taken[u.Order] {
			return nil, util.BadRequestError("DUPLICATE_ORDER", "duplicate order in reorder request")
		}
		target[u.ID] = u.Order
		taken[u.Order] = true
	}

	next := 1
	final := make([]repository.OrderedItem, 0, n)
	for _, item := range items {
		order, ok := target[item.ID]
		if !ok {
			for taken[next] {
				next++
			}
			order = next
			taken[next] = true
		}
		final = append(final, repository.OrderedItem{ID: item.ID, ParentID: item.ParentID, Order: order})
	}

	sort.Slice(final, func(i, j int) bool { return final[i].Order < final[j].Order })
	return final, nil
}
