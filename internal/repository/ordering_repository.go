package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderScope 描述一组按父级排序的记录
type OrderScope struct {
	Name         string
	Table        string
	ParentColumn string
	ParentTable  string
}

var (
	ModuleOrderScope = OrderScope{Name: "module", Table: "modules", ParentColumn: "course_id", ParentTable: "courses"}
	LessonOrderScope = OrderScope{Name: "lesson", Table: "lessons", ParentColumn: "module_id", ParentTable: "modules"}
)

// OrderedItem 排序所需的最小字段集
type OrderedItem struct {
	ID       uint `json:"id"`
	ParentID uint `json:"parentId"`
	Order    int  `json:"order"`
}

// OrderingRepository 排序列的底层读写，所有方法都在调用方给定的事务内执行
type OrderingRepository struct {
	DB *gorm.DB
}

func NewOrderingRepository(db *gorm.DB) *OrderingRepository {
	return &OrderingRepository{DB: db}
}

func (s OrderScope) parentCond() string {
	return s.ParentColumn + " = ?"
}

// LockParent 对父记录加行锁，同一父级下的排序操作串行执行
func (r *OrderingRepository) LockParent(tx *gorm.DB, scope OrderScope, parentID uint) error {
	var ids []uint
	err := tx.Table(scope.ParentTable).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", parentID).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *OrderingRepository) FindItem(tx *gorm.DB, scope OrderScope, id uint) (OrderedItem, error) {
	var item OrderedItem
	err := tx.Table(scope.Table).
		Select(fmt.Sprintf("id, %s AS parent_id, `order`", scope.ParentColumn)).
		Where("id = ?", id).
		Take(&item).Error
	return item, err
}

func (r *OrderingRepository) ListItems(tx *gorm.DB, scope OrderScope, parentID uint) ([]OrderedItem, error) {
	var items []OrderedItem
	err := tx.Table(scope.Table).
		Select(fmt.Sprintf("id, %s AS parent_id, `order`", scope.ParentColumn)).
		Where(scope.parentCond(), parentID).
		Order("`order` ASC").
		Find(&items).Error
	return items, err
}

func (r *OrderingRepository) Count(tx *gorm.DB, scope OrderScope, parentID uint) (int, error) {
	var count int64
	err := tx.Table(scope.Table).Where(scope.parentCond(), parentID).Count(&count).Error
	return int(count), err
}

func (r *OrderingRepository) MaxOrder(tx *gorm.DB, scope OrderScope, parentID uint) (int, error) {
	var maxOrder int
	err := tx.Table(scope.Table).
		Select("COALESCE(MAX(`order`), 0)").
		Where(scope.parentCond(), parentID).
		Scan(&maxOrder).Error
	return maxOrder, err
}

func (r *OrderingRepository) SetOrder(tx *gorm.DB, scope OrderScope, id uint, order int) error {
	return tx.Table(scope.Table).Where("id = ?", id).Update("order", order).Error
}

// ShiftRange 将 [from, to] 区间内的记录整体平移 delta。
// 先取反再还原，两条语句逐行检查唯一索引时都不会和区间外的值冲突
func (r *OrderingRepository) ShiftRange(tx *gorm.DB, scope OrderScope, parentID uint, from, to, delta int) error {
	if from > to || delta == 0 {
		return nil
	}
	err := tx.Table(scope.Table).
		Where(scope.parentCond()+" AND `order` >= ? AND `order` <= ?", parentID, from, to).
		Update("order", gorm.Expr("-(`order` + ?)", delta)).Error
	if err != nil {
		return err
	}
	return tx.Table(scope.Table).
		Where(scope.parentCond()+" AND `order` < 0", parentID).
		Update("order", gorm.Expr("-`order`")).Error
}

// ParkAll 把父级下所有记录移到 offset 之后的临时区间
func (r *OrderingRepository) ParkAll(tx *gorm.DB, scope OrderScope, parentID uint, offset int) error {
	return tx.Table(scope.Table).
		Where(scope.parentCond(), parentID).
		Update("order", gorm.Expr("`order` + ?", offset)).Error
}
