package repository

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errEncodePerson = errors.New("encode person")

const visibleToViewer = "(is_public = ? OR (owner_id IS NOT NULL AND owner_id = ?))"

type PersonRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// FindByIdentity returns persons whose identity tuple equals identity after token
// normalisation, restricted to records the viewer may see.
func (r *PersonRepository) FindByIdentity(ctx context.Context, identity domain.Identity, viewerID string) ([]domain.Person, error) {
	var rows []models.Person
	err := r.db.WithContext(ctx).
		Where(normalizedColumn("name")+" = ?", domain.NormalizeToken(identity.Name)).
		Where("birth_date = ?", domain.NormalizeBirthDate(identity.BirthDate)).
		Where(normalizedColumn("gender")+" = ?", domain.NormalizeToken(identity.Gender)).
		Where(normalizedColumn("nationality")+" = ?", domain.NormalizeToken(identity.Nationality)).
		Where(visibleToViewer, true, viewerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find persons by identity: %w", err)
	}
	return toDomainPersons(rows), nil
}

// normalizedColumn mirrors domain.NormalizeToken in SQL.
func normalizedColumn(column string) string {
	return "LOWER(REGEXP_REPLACE(BTRIM(" + column + "), '[[:space:]]+', ' ', 'g'))"
}

func (r *PersonRepository) GetVisibleByIDs(ctx context.Context, personIDs []string, viewerID string) ([]domain.Person, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	var rows []models.Person
	err := r.db.WithContext(ctx).
		Where("id IN ?", personIDs).
		Where(visibleToViewer, true, viewerID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get persons by ids: %w", err)
	}
	return toDomainPersons(rows), nil
}

func toDomainPersons(rows []models.Person) []domain.Person {
	out := make([]domain.Person, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Person{
			ID:             row.ID,
			Name:           row.Name,
			ChineseName:    row.ChineseName,
			EnglishName:    row.EnglishName,
			OriginalName:   row.OriginalName,
			AliasNames:     decodeStrings(row.AliasNames),
			Gender:         row.Gender,
			BirthDate:      row.BirthDate,
			DeathDate:      row.DeathDate,
			Nationality:    row.Nationality,
			BirthPlace:     row.BirthPlace,
			IDCardNumber:   row.IDCardNumber,
			PassportNumber: row.PassportNumber,
			Phone:          row.Phone,
			Email:          row.Email,
			Address:        row.Address,
			Organization:   row.Organization,
			Position:       row.Position,
			Education:      row.Education,
			WorkExperience: row.WorkExperience,
			Remark:         row.Remark,
			Tags:           decodeStrings(row.Tags),
			ImagePaths:     decodeStrings(row.ImagePaths),
			IsPublic:       row.IsPublic,
			OwnerID:        textValue(row.OwnerID),
			OwnerName:      textValue(row.OwnerName),
			SourceTaskID:   textValue(row.SourceTaskID),
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return out
}

func toModelPerson(p domain.Person) (models.Person, error) {
	aliases, err := encodeStrings(p.AliasNames)
	if err != nil {
		return models.Person{}, fmt.Errorf("%w: alias names: %v", errEncodePerson, err)
	}
	tags, err := encodeStrings(p.Tags)
	if err != nil {
		return models.Person{}, fmt.Errorf("%w: tags: %v", errEncodePerson, err)
	}
	images, err := encodeStrings(p.ImagePaths)
	if err != nil {
		return models.Person{}, fmt.Errorf("%w: image paths: %v", errEncodePerson, err)
	}
	return models.Person{
		ID:             p.ID,
		Name:           p.Name,
		ChineseName:    p.ChineseName,
		EnglishName:    p.EnglishName,
		OriginalName:   p.OriginalName,
		AliasNames:     datatypes.JSON(aliases),
		Gender:         p.Gender,
		BirthDate:      p.BirthDate,
		DeathDate:      p.DeathDate,
		Nationality:    p.Nationality,
		BirthPlace:     p.BirthPlace,
		IDCardNumber:   p.IDCardNumber,
		PassportNumber: p.PassportNumber,
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		Organization:   p.Organization,
		Position:       p.Position,
		Education:      p.Education,
		WorkExperience: p.WorkExperience,
		Remark:         p.Remark,
		Tags:           datatypes.JSON(tags),
		ImagePaths:     datatypes.JSON(images),
		IsPublic:       p.IsPublic,
		OwnerID:        nullableText(p.OwnerID),
		OwnerName:      nullableText(p.OwnerName),
		SourceTaskID:   nullableText(p.SourceTaskID),
	}, nil
}
